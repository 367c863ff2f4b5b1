package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/sgtm-webhook/api/responses"
	"github.com/angelmondragon/sgtm-webhook/internal/statistics"
	pkgerrors "github.com/angelmondragon/sgtm-webhook/pkg/errors"
	"github.com/angelmondragon/sgtm-webhook/pkg/logger"
)

type statisticsService interface {
	Summary(ctx context.Context) (statistics.Summary, error)
}

func AdminStatistics(svc statisticsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute statistics"))
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
