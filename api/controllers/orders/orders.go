package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/dailyledger/api/middleware"
	"github.com/angelmondragon/dailyledger/api/responses"
	"github.com/angelmondragon/dailyledger/api/validators"
	internalorders "github.com/angelmondragon/dailyledger/internal/orders"
	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
	"github.com/angelmondragon/dailyledger/pkg/logger"
)

const maxFeedbackLength = 2000

type submitOrderRequest struct {
	Items map[string]int64 `json:"items" validate:"required,dive,keys,required,endkeys,gte=0,lte=1000000"`
}

type feedbackRequest struct {
	Rating       int    `json:"rating" validate:"min=0,max=5"`
	FeedbackText string `json:"feedbackText" validate:"max=2000"`
}

// Cart returns today's cart for the user: items on sale, quantities seeded
// from any existing order and the ordering state.
func Cart(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := userIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		model, err := svc.BuildCart(r.Context(), middleware.TenantFromContext(r.Context()), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, model.View())
	}
}

// Submit records the user's order for today, replacing any earlier one.
func Submit(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := userIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req submitOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.SubmitOrder(r.Context(), middleware.TenantFromContext(r.Context()), userID, internalorders.SubmitInput{Items: req.Items})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if receipt.Updated {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, receipt)
	}
}

// History lists the user's orders with decoded lines.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := userIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.ListOrders(r.Context(), middleware.TenantFromContext(r.Context()), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, history)
	}
}

// Feedback stores a rating and comment against one order.
func Feedback(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		userID, err := userIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderNumber := strings.TrimSpace(chi.URLParam(r, "orderNumber"))
		if orderNumber == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order number is required"))
			return
		}

		var req feedbackRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.FeedbackInput{
			Rating:       req.Rating,
			FeedbackText: validators.SanitizeString(req.FeedbackText, maxFeedbackLength),
		}
		if err := svc.RecordFeedback(r.Context(), middleware.TenantFromContext(r.Context()), userID, orderNumber, input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "Feedback for order " + orderNumber + " recorded"})
	}
}

func userIDParam(r *http.Request) (string, error) {
	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return userID, nil
}
