// Package push sends multicast notifications through a provider gateway and
// reports one outcome per token, with provider error vocabulary normalized to
// a closed set of reasons.
package push

import (
	"context"
	"strings"
)

// MaxMulticastTokens is the provider fan-out limit for one multicast call.
const MaxMulticastTokens = 500

type ErrorReason string

const (
	ReasonTokenUnregistered ErrorReason = "token-unregistered"
	ReasonTokenInvalid      ErrorReason = "token-invalid"
	ReasonTransient         ErrorReason = "transient"
	ReasonOther             ErrorReason = "other"
)

// RemovesToken reports whether a failure with this reason means the token
// will never work again.
func (r ErrorReason) RemovesToken() bool {
	return r == ReasonTokenUnregistered || r == ReasonTokenInvalid
}

type codeRule struct {
	match  string
	reason ErrorReason
}

// Checked in order; the first rule whose match appears in the normalized
// code wins.
var codeRules = []codeRule{
	// Credential faults concern the sender, never the token.
	{"sender-id-mismatch", ReasonOther},
	{"mismatched-credential", ReasonOther},

	{"registration-token-not-registered", ReasonTokenUnregistered},
	{"unregistered", ReasonTokenUnregistered},
	{"endpointdisabled", ReasonTokenUnregistered},
	{"notfound", ReasonTokenUnregistered},

	{"invalid-registration-token", ReasonTokenInvalid},
	{"invalid-recipient", ReasonTokenInvalid},
	{"invalidparameter", ReasonTokenInvalid},

	{"unavailable", ReasonTransient},
	{"internal", ReasonTransient},
	{"quota-exceeded", ReasonTransient},
	{"message-rate-exceeded", ReasonTransient},
	{"throttled", ReasonTransient},
	{"deadline-exceeded", ReasonTransient},
	{"timeout", ReasonTransient},
}

// NormalizeCode maps a provider error code (FCM legacy "messaging/..." codes,
// FCM v1 status names, SNS exception names) onto the closed taxonomy.
func NormalizeCode(code string) ErrorReason {
	c := strings.ToLower(strings.TrimSpace(code))
	if c == "" {
		return ReasonOther
	}
	c = strings.TrimPrefix(c, "messaging/")
	c = strings.ReplaceAll(c, "_", "-")

	for _, rule := range codeRules {
		if strings.Contains(c, rule.match) {
			return rule.reason
		}
	}
	return ReasonOther
}

// Message is the payload shared by every token in one multicast call.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Outcome is the result for one token, in submission order.
type Outcome struct {
	Token     string
	Success   bool
	MessageID string
	Reason    ErrorReason
	Detail    string
}

// Hints are platform presentation settings attached to every send.
type Hints struct {
	AndroidIcon  string
	AndroidColor string
	AndroidSound string
	APNSSound    string
	APNSBadge    int
}

// Gateway is a bulk push provider. SendMulticast returns an error only when
// the call as a whole failed; per-token failures are reported in outcomes.
// DryRun validates tokens without delivering anything.
type Gateway interface {
	SendMulticast(ctx context.Context, tokens []string, msg Message) ([]Outcome, error)
	DryRun(ctx context.Context, tokens []string) ([]Outcome, error)
}
