package payment

import (
	"errors"
	"strconv"

	"github.com/telefoot/telefoot-bot/bot/license"
	"github.com/telefoot/telefoot-bot/core/telegram/callbacks"
)

// Callback keys understood by the payment workflow. Inline buttons carry the
// key as the telebot unique and the arguments as the payload.
const (
	// CallbackPay requests a plan; payload is "<plan>|<actingUserID>".
	CallbackPay = "pay"
	// CallbackCancelPayment cancels a pending request; no payload.
	CallbackCancelPayment = "cancel_payment"
)

// ErrUnknownAction reports a callback that decodes to no recognized action.
var ErrUnknownAction = errors.New("payment: unknown callback action")

// Action is the closed set of callback actions the workflow accepts. Payloads
// are decoded exactly once at the boundary; anything unrecognized is rejected
// instead of being silently ignored.
type Action interface {
	isAction()
}

// RequestPaymentAction asks to open a payment request for ActingUser.
type RequestPaymentAction struct {
	Plan       license.Plan
	ActingUser int64
}

func (RequestPaymentAction) isAction() {}

// CancelPaymentAction withdraws the sender's pending request.
type CancelPaymentAction struct{}

func (CancelPaymentAction) isAction() {}

// DecodeAction parses a callback key and payload into an Action.
func DecodeAction(key, payload string) (Action, error) {
	switch key {
	case CallbackPay:
		parts, err := callbacks.SplitPayload(payload, "|", 2)
		if err != nil {
			return nil, ErrUnknownAction
		}
		plan, err := license.ParsePlan(parts[0])
		if err != nil {
			return nil, err
		}
		uid, err := callbacks.PayloadID(parts[1])
		if err != nil {
			return nil, ErrUnknownAction
		}
		return RequestPaymentAction{Plan: plan, ActingUser: uid}, nil
	case CallbackCancelPayment:
		return CancelPaymentAction{}, nil
	}
	return nil, ErrUnknownAction
}

// EncodePayPayload builds the payload carried by a pay button.
func EncodePayPayload(plan license.Plan, actingUser int64) string {
	return string(plan) + "|" + strconv.FormatInt(actingUser, 10)
}
