package gateway

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-square/core"
)

type obtainTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type obtainTokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresAt        string `json:"expires_at"`
	TokenType        string `json:"token_type"`
	MerchantID       string `json:"merchant_id"`
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type revokeTokenRequest struct {
	ClientID    string `json:"client_id"`
	AccessToken string `json:"access_token"`
}

type revokeTokenResponse struct {
	Success bool `json:"success"`
}

type wireMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func moneyToWire(money core.Money) wireMoney {
	return wireMoney{Amount: money.Amount, Currency: money.Currency}
}

func moneyFromWire(money *wireMoney) core.Money {
	if money == nil {
		return core.Money{}
	}
	return core.Money{Amount: money.Amount, Currency: money.Currency}
}

type wireOrderLineItem struct {
	Name           string     `json:"name"`
	Quantity       string     `json:"quantity"`
	Note           string     `json:"note,omitempty"`
	BasePriceMoney *wireMoney `json:"base_price_money,omitempty"`
}

type wirePickupRecipient struct {
	DisplayName string `json:"display_name,omitempty"`
}

type wirePickupDetails struct {
	Recipient *wirePickupRecipient `json:"recipient,omitempty"`
	PickupAt  string               `json:"pickup_at,omitempty"`
}

type wireFulfillment struct {
	Type          string             `json:"type"`
	State         string             `json:"state,omitempty"`
	PickupDetails *wirePickupDetails `json:"pickup_details,omitempty"`
}

type wireOrder struct {
	ID           string              `json:"id,omitempty"`
	LocationID   string              `json:"location_id"`
	ReferenceID  string              `json:"reference_id,omitempty"`
	LineItems    []wireOrderLineItem `json:"line_items,omitempty"`
	Fulfillments []wireFulfillment   `json:"fulfillments,omitempty"`
	TotalMoney   *wireMoney          `json:"total_money,omitempty"`
}

type createOrderRequest struct {
	IdempotencyKey string    `json:"idempotency_key"`
	Order          wireOrder `json:"order"`
}

type createOrderResponse struct {
	Order  *wireOrder    `json:"order"`
	Errors []ErrorDetail `json:"errors"`
}

type wireExternalDetails struct {
	Type   string `json:"type"`
	Source string `json:"source"`
}

type createPaymentRequest struct {
	IdempotencyKey  string               `json:"idempotency_key"`
	SourceID        string               `json:"source_id"`
	AmountMoney     wireMoney            `json:"amount_money"`
	OrderID         string               `json:"order_id,omitempty"`
	LocationID      string               `json:"location_id,omitempty"`
	ExternalDetails *wireExternalDetails `json:"external_details,omitempty"`
}

type wirePayment struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	AmountMoney *wireMoney `json:"amount_money"`
	SourceType  string     `json:"source_type"`
	Status      string     `json:"status"`
}

type createPaymentResponse struct {
	Payment *wirePayment  `json:"payment"`
	Errors  []ErrorDetail `json:"errors"`
}

type wireLocation struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Status       string   `json:"status"`
	Capabilities []string `json:"capabilities"`
}

type listLocationsResponse struct {
	Locations []wireLocation `json:"locations"`
	Errors    []ErrorDetail  `json:"errors"`
}

func orderRequestToWire(req core.ExternalOrderRequest) createOrderRequest {
	lineItems := make([]wireOrderLineItem, 0, len(req.LineItems))
	for _, line := range req.LineItems {
		price := moneyToWire(line.Amount)
		lineItems = append(lineItems, wireOrderLineItem{
			Name:           line.Name,
			Quantity:       strconv.Itoa(line.Quantity),
			Note:           line.Note,
			BasePriceMoney: &price,
		})
	}

	order := wireOrder{
		LocationID:  req.LocationID,
		ReferenceID: req.ReferenceID,
		LineItems:   lineItems,
	}
	if strings.TrimSpace(req.Pickup.PickupAt) != "" || strings.TrimSpace(req.Pickup.RecipientDisplayName) != "" {
		details := &wirePickupDetails{PickupAt: req.Pickup.PickupAt}
		if strings.TrimSpace(req.Pickup.RecipientDisplayName) != "" {
			details.Recipient = &wirePickupRecipient{DisplayName: req.Pickup.RecipientDisplayName}
		}
		order.Fulfillments = []wireFulfillment{{
			Type:          "PICKUP",
			State:         req.Pickup.State,
			PickupDetails: details,
		}}
	}

	return createOrderRequest{
		IdempotencyKey: req.IdempotencyKey,
		Order:          order,
	}
}

func orderFromWire(order *wireOrder) core.ExternalOrder {
	if order == nil {
		return core.ExternalOrder{}
	}
	lineItems := make([]core.ExternalLineItem, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		quantity, _ := strconv.Atoi(strings.TrimSpace(line.Quantity))
		lineItems = append(lineItems, core.ExternalLineItem{
			Name:     line.Name,
			Quantity: quantity,
			Note:     line.Note,
			Amount:   moneyFromWire(line.BasePriceMoney),
		})
	}
	return core.ExternalOrder{
		ID:          order.ID,
		ReferenceID: order.ReferenceID,
		LocationID:  order.LocationID,
		TotalMoney:  moneyFromWire(order.TotalMoney),
		LineItems:   lineItems,
	}
}

func paymentFromWire(payment *wirePayment) core.ExternalPayment {
	if payment == nil {
		return core.ExternalPayment{}
	}
	return core.ExternalPayment{
		ID:       payment.ID,
		OrderID:  payment.OrderID,
		Amount:   moneyFromWire(payment.AmountMoney),
		SourceID: payment.SourceType,
		Status:   payment.Status,
	}
}

func locationFromWire(location wireLocation) core.Location {
	return core.Location{
		ID:           location.ID,
		Name:         location.Name,
		Status:       location.Status,
		Capabilities: append([]string(nil), location.Capabilities...),
	}
}
