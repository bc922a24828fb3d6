package core

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

const (
	pickupStateProposed       = "PROPOSED"
	externalPaymentSourceID   = "EXTERNAL"
	externalPaymentSourceName = "Storefront order"
)

var htmlTagPattern = regexp.MustCompile(`<.*?>`)

// StripHTML removes markup from line item notes. Attribute descriptions
// arrive as rendered HTML and the provider rejects tags in plain text
// fields.
func StripHTML(value string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(value, ""))
}

// MinorUnits converts a decimal price to the provider's integer minor
// unit convention, rounding half away from zero.
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

// OrderIdempotencyKey is the dedupe key for order creation. It is derived
// from the internal order id alone so a retried submission can never
// create a second provider order.
func OrderIdempotencyKey(orderID string) string {
	return strings.TrimSpace(orderID)
}

// PaymentIdempotencyKey is the dedupe key for payment creation. It is
// distinct from the order key so the two calls cannot collide.
func PaymentIdempotencyKey(orderID string) string {
	return strings.TrimSpace(orderID) + ":payment"
}

// BuildOrderRequest maps an internal order to a provider order request.
// The mapping is pure; it performs no I/O and is deterministic for a
// given order and pickup time.
func BuildOrderRequest(order Order, locationID string, pickupAt time.Time) (ExternalOrderRequest, error) {
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return ExternalOrderRequest{}, fmt.Errorf("core: order id is required")
	}
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return ExternalOrderRequest{}, fmt.Errorf("core: location id is required")
	}
	if len(order.Lines) == 0 {
		return ExternalOrderRequest{}, fmt.Errorf("core: order %q has no line items", orderID)
	}
	currency := strings.TrimSpace(order.CurrencyCode)
	if currency == "" {
		return ExternalOrderRequest{}, fmt.Errorf("core: order %q has no currency code", orderID)
	}

	lineItems := make([]ExternalLineItem, 0, len(order.Lines))
	for i, line := range order.Lines {
		name := strings.TrimSpace(line.Name)
		if name == "" {
			return ExternalOrderRequest{}, fmt.Errorf("core: order %q line %d has no name", orderID, i)
		}
		if line.Quantity < 1 {
			return ExternalOrderRequest{}, fmt.Errorf("core: order %q line %d has invalid quantity %d", orderID, i, line.Quantity)
		}
		lineItems = append(lineItems, ExternalLineItem{
			Name:     name,
			Quantity: line.Quantity,
			Note:     StripHTML(line.Note),
			Amount: Money{
				Amount:   MinorUnits(line.UnitPrice),
				Currency: currency,
			},
		})
	}

	return ExternalOrderRequest{
		IdempotencyKey: OrderIdempotencyKey(orderID),
		LocationID:     locationID,
		ReferenceID:    strings.TrimSpace(order.ReferenceID),
		LineItems:      lineItems,
		Pickup: PickupFulfillment{
			RecipientDisplayName: strings.TrimSpace(order.CustomerEmail),
			PickupAt:             pickupAt.Format(time.RFC3339),
			State:                pickupStateProposed,
		},
	}, nil
}

// BuildPaymentRequest maps a created provider order to its payment
// request. The amount is taken from the provider order total, never
// recomputed from the internal lines.
func BuildPaymentRequest(order Order, external ExternalOrder) (ExternalPaymentRequest, error) {
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return ExternalPaymentRequest{}, fmt.Errorf("core: order id is required")
	}
	if strings.TrimSpace(external.ID) == "" {
		return ExternalPaymentRequest{}, fmt.Errorf("core: external order id is required")
	}

	return ExternalPaymentRequest{
		IdempotencyKey: PaymentIdempotencyKey(orderID),
		LocationID:     external.LocationID,
		OrderID:        external.ID,
		Amount:         external.TotalMoney,
		SourceID:       externalPaymentSourceID,
		ExternalSource: externalPaymentSourceName,
	}, nil
}

// SubmitOrder pushes one internal order to the provider as an order plus
// payment pair. Order creation failure fails the whole call; payment
// failure after the order exists is terminal but reported as a result so
// the caller can see the created order alongside the failure.
func (s *Service) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (result SubmissionResult, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"tenant_id": req.TenantID,
		"order_id":  req.Order.ID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "submit_order", err, fields)
	}()

	if s == nil {
		return SubmissionResult{}, fmt.Errorf("core: service is nil")
	}
	if s.submissionStore == nil {
		err = s.mapError(fmt.Errorf("core: submission store is not configured"))
		return SubmissionResult{}, err
	}
	if s.orderGateway == nil || s.paymentGateway == nil {
		err = s.mapError(fmt.Errorf("core: order and payment gateways are not configured"))
		return SubmissionResult{}, err
	}

	gw, resolveErr := s.resolveConnectedGateway(ctx, req.TenantID)
	if resolveErr != nil {
		err = resolveErr
		return SubmissionResult{}, err
	}
	if strings.TrimSpace(gw.LocationID) == "" {
		err = s.mapError(fmt.Errorf("core: no location is configured for tenant %q", gw.TenantID))
		return SubmissionResult{}, err
	}

	orderRequest, buildErr := BuildOrderRequest(req.Order, gw.LocationID, s.now())
	if buildErr != nil {
		err = s.mapError(buildErr)
		return SubmissionResult{}, err
	}

	submission, beginErr := s.submissionStore.Begin(ctx, BeginSubmissionInput{
		TenantID: gw.TenantID,
		OrderID:  strings.TrimSpace(req.Order.ID),
	})
	if beginErr != nil {
		err = s.mapError(beginErr)
		return SubmissionResult{}, err
	}
	fields["submission_id"] = submission.ID

	// A retried order whose ledger row already finished replays the
	// recorded outcome instead of touching the provider again.
	if submission.Status.Terminal() {
		return submissionResultFromRecord(submission), nil
	}

	externalOrder, createErr := s.orderGateway.CreateOrder(ctx, gw, orderRequest)
	if createErr != nil {
		_, _ = s.submissionStore.Transition(ctx, submission.ID, SubmissionUpdate{
			Status: SubmissionStatusNotSubmitted,
			Detail: createErr.Error(),
		})
		err = s.mapError(createErr)
		return SubmissionResult{}, err
	}
	if strings.TrimSpace(externalOrder.ID) == "" {
		emptyErr := fmt.Errorf("core: no service response for order %q", req.Order.ID)
		_, _ = s.submissionStore.Transition(ctx, submission.ID, SubmissionUpdate{
			Status: SubmissionStatusNotSubmitted,
			Detail: emptyErr.Error(),
		})
		err = s.mapError(emptyErr)
		return SubmissionResult{}, err
	}
	fields["external_order_id"] = externalOrder.ID

	if _, transitionErr := s.submissionStore.Transition(ctx, submission.ID, SubmissionUpdate{
		Status:          SubmissionStatusOrderCreated,
		ExternalOrderID: externalOrder.ID,
	}); transitionErr != nil {
		err = s.mapError(transitionErr)
		return SubmissionResult{}, err
	}

	paymentRequest, paymentBuildErr := BuildPaymentRequest(req.Order, externalOrder)
	if paymentBuildErr != nil {
		_, _ = s.submissionStore.Transition(ctx, submission.ID, SubmissionUpdate{
			Status: SubmissionStatusPaymentFailed,
			Detail: paymentBuildErr.Error(),
		})
		return SubmissionResult{
			Status:       SubmissionStatusPaymentFailed,
			Order:        externalOrder,
			PaymentError: paymentBuildErr.Error(),
		}, nil
	}

	payment, paymentErr := s.paymentGateway.CreatePayment(ctx, gw, paymentRequest)
	if paymentErr != nil {
		_, _ = s.submissionStore.Transition(ctx, submission.ID, SubmissionUpdate{
			Status: SubmissionStatusPaymentFailed,
			Detail: paymentErr.Error(),
		})
		return SubmissionResult{
			Status:       SubmissionStatusPaymentFailed,
			Order:        externalOrder,
			PaymentError: paymentErr.Error(),
		}, nil
	}
	fields["payment_id"] = payment.ID

	if _, transitionErr := s.submissionStore.Transition(ctx, submission.ID, SubmissionUpdate{
		Status:    SubmissionStatusPaymentCreated,
		PaymentID: payment.ID,
	}); transitionErr != nil {
		err = s.mapError(transitionErr)
		return SubmissionResult{}, err
	}

	return SubmissionResult{
		Status:  SubmissionStatusPaymentCreated,
		Order:   externalOrder,
		Payment: &payment,
	}, nil
}

func submissionResultFromRecord(submission Submission) SubmissionResult {
	result := SubmissionResult{
		Status: submission.Status,
		Order:  ExternalOrder{ID: submission.ExternalOrderID},
	}
	if submission.Status == SubmissionStatusPaymentCreated {
		result.Payment = &ExternalPayment{
			ID:      submission.PaymentID,
			OrderID: submission.ExternalOrderID,
		}
		return result
	}
	result.PaymentError = submission.LastError
	return result
}

// GetSubmission returns the submission ledger entry for one order.
func (s *Service) GetSubmission(ctx context.Context, tenantID, orderID string) (Submission, bool, error) {
	if s == nil || s.submissionStore == nil {
		return Submission{}, false, fmt.Errorf("core: submission store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	orderID = strings.TrimSpace(orderID)
	if tenantID == "" || orderID == "" {
		return Submission{}, false, s.mapError(fmt.Errorf("core: tenant id and order id are required"))
	}
	submission, found, err := s.submissionStore.GetByOrder(ctx, tenantID, orderID)
	if err != nil {
		return Submission{}, false, s.mapError(err)
	}
	return submission, found, nil
}
