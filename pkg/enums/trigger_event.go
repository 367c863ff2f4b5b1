package enums

import "fmt"

// TriggerEvent names what caused a dispatch attempt.
type TriggerEvent string

const (
	TriggerOrderPaid            TriggerEvent = "order.paid"
	TriggerOrderStatusChanged   TriggerEvent = "order.status_changed"
	TriggerOrderPaymentComplete TriggerEvent = "order.payment_complete"
	TriggerManualResend         TriggerEvent = "manual.resend"
	TriggerReprocess            TriggerEvent = "manual.reprocess"
	TriggerRetrySweep           TriggerEvent = "cron.retry_sweep"
)

// inboundTriggers are accepted from the order store's event system.
var inboundTriggers = []TriggerEvent{
	TriggerOrderPaid,
	TriggerOrderStatusChanged,
	TriggerOrderPaymentComplete,
}

// IsInbound reports whether the trigger may arrive from the order store.
func (t TriggerEvent) IsInbound() bool {
	for _, candidate := range inboundTriggers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInboundTrigger converts raw input into an inbound TriggerEvent.
func ParseInboundTrigger(value string) (TriggerEvent, error) {
	for _, candidate := range inboundTriggers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trigger event %q", value)
}
