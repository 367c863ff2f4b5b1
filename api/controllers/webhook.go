package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/sgtm-webhook/api/responses"
	"github.com/angelmondragon/sgtm-webhook/internal/dispatch"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
)

type webhookTester interface {
	SendTest(ctx context.Context) dispatch.TestResult
	CheckConnectivity(ctx context.Context) dispatch.TestResult
}

// AdminWebhookTest posts a synthetic event. Delivery failures are reported in
// the body, not as HTTP errors.
func AdminWebhookTest(svc webhookTester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := svc.SendTest(r.Context())
		logg.Info(logg.WithFields(r.Context(), map[string]any{
			"success":     result.Success,
			"status_code": result.StatusCode,
		}), "webhook test event sent")
		responses.WriteSuccess(w, result)
	}
}

func AdminWebhookConnectivity(svc webhookTester, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, svc.CheckConnectivity(r.Context()))
	}
}
