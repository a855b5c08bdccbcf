package handlers

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"breakupguide/internal/catalog"
	"breakupguide/internal/checkout"
	"breakupguide/internal/models"
	"breakupguide/internal/payment"
)

// CheckoutHandler takes a staged bundle or a single title through payment
type CheckoutHandler struct {
	site     *Site
	catalog  *catalog.Catalog
	checkout *checkout.Service
	logger   *log.Logger
}

func NewCheckoutHandler(site *Site, cat *catalog.Catalog, svc *checkout.Service, logger *log.Logger) *CheckoutHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &CheckoutHandler{
		site:     site,
		catalog:  cat,
		checkout: svc,
		logger:   logger.With("component", "checkout"),
	}
}

func buyerFromRequest(r *http.Request) checkout.Buyer {
	user := GetUserFromContext(r.Context())
	b := checkout.Buyer{VisitorID: VisitorID(r.Context())}
	if user != nil {
		b.Owner = user.LibraryOwner()
		b.Email = user.Email
		b.Name = user.DisplayName()
	}
	return b
}

// Show renders the bundle summary. An empty bundle goes back home before
// any sign-in is asked for.
func (h *CheckoutHandler) Show(w http.ResponseWriter, r *http.Request) {
	cart, err := h.checkout.Begin(r.Context(), h.site.State(r))
	if errors.Is(err, checkout.ErrEmptyBundle) {
		redirectWithFlash(w, r, "/", "Your bundle is empty. Pick a chapter to get recommendations.")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "failed to load bundle", err)
		return
	}
	if GetUserFromContext(r.Context()) == nil {
		redirectToLogin(w, r, checkout.Route)
		return
	}

	h.site.render(w, "checkout.tmpl", CheckoutViewData{
		Page:      h.site.Page(w, r, "Checkout"),
		Cart:      cart,
		Providers: h.checkout.Providers(),
	})
}

// Create opens a payment order for the staged bundle and sends the buyer to approve it
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "failed to parse checkout form", err)
		return
	}

	cart, err := h.checkout.Begin(r.Context(), h.site.State(r))
	if errors.Is(err, checkout.ErrEmptyBundle) {
		redirectWithFlash(w, r, "/", "Your bundle is empty. Pick a chapter to get recommendations.")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "failed to load bundle", err)
		return
	}
	if GetUserFromContext(r.Context()) == nil {
		redirectToLogin(w, r, checkout.Route)
		return
	}

	h.startPayment(w, r, r.FormValue("provider"), cart, checkout.Route)
}

// BuySingle opens a payment order for one title from the books page
func (h *CheckoutHandler) BuySingle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidFormData, "failed to parse purchase form", err)
		return
	}

	item, err := h.catalog.Item(r.PathValue("id"))
	if err != nil || item.Free {
		redirectWithFlash(w, r, "/books", "That title is not for sale.")
		return
	}
	if GetUserFromContext(r.Context()) == nil {
		redirectToLogin(w, r, "/books")
		return
	}

	h.startPayment(w, r, r.FormValue("provider"), h.checkout.SingleCart(item), "/books")
}

func (h *CheckoutHandler) startPayment(w http.ResponseWriter, r *http.Request, provider string, cart *checkout.Cart, failTo string) {
	order, approvalURL, err := h.checkout.CreateOrder(r.Context(), provider, buyerFromRequest(r), cart)
	if err != nil {
		h.logger.Error("failed to create order", "provider", provider, "error", err)
		redirectWithFlash(w, r, failTo, "We couldn't start the payment. Please try again.")
		return
	}
	h.logger.Debug("redirecting to payment approval", "order", order.ID)
	http.Redirect(w, r, approvalURL, http.StatusSeeOther)
}

// Success is where the processor returns the buyer after approval
func (h *CheckoutHandler) Success(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID := q.Get("token")
	if orderID == "" {
		orderID = q.Get("session_id")
	}
	if orderID == "" {
		redirectWithFlash(w, r, checkout.Route, "The payment could not be confirmed.")
		return
	}
	if GetUserFromContext(r.Context()) == nil {
		redirectToLogin(w, r, r.URL.RequestURI())
		return
	}

	target, err := h.checkout.Complete(r.Context(), orderID, buyerFromRequest(r), h.site.State(r))
	switch {
	case err == nil:
		redirectWithFlash(w, r, target, "Thank you! Your titles are in your library.")
	case errors.Is(err, checkout.ErrPaymentFailed):
		failTo := checkout.Route
		if order, oerr := h.orderKind(r, orderID); oerr == nil && order == models.OrderKindSingle {
			failTo = "/books"
		}
		redirectWithFlash(w, r, failTo, "Your payment didn't go through. Nothing was charged.")
	case errors.Is(err, checkout.ErrLibraryWrite):
		h.site.renderError(w, r, http.StatusInternalServerError,
			"We couldn't save your purchase",
			"Your payment was received but your library could not be updated. Retrying will not charge you again.",
			r.URL.RequestURI())
	case errors.Is(err, payment.ErrUnknownOrder), errors.Is(err, checkout.ErrOrderOwner):
		h.site.renderError(w, r, http.StatusNotFound, "Order not found", "We couldn't find that order on your account.", "/")
	default:
		respondWithError(w, http.StatusInternalServerError, ErrInternalServerError, "failed to complete order", err)
	}
}

func (h *CheckoutHandler) orderKind(r *http.Request, orderID string) (models.OrderKind, error) {
	user := GetUserFromContext(r.Context())
	orders, err := h.checkout.Orders(r.Context(), user.LibraryOwner())
	if err != nil {
		return "", err
	}
	for _, o := range orders {
		if o.ID == orderID {
			return o.Kind, nil
		}
	}
	return "", payment.ErrUnknownOrder
}

// Cancel is where the processor returns the buyer after backing out
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	redirectWithFlash(w, r, checkout.Route, "Payment cancelled. Your bundle is still here.")
}
