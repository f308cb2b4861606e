package model

// DefaultAlertTitle is used by the notify endpoints when no title is given.
const DefaultAlertTitle = "QuakeScope Alert"

// GatewayRequest is a single-recipient push as handed to a Gateway.
type GatewayRequest struct {
	Token  string
	Title  string
	Body   string
	Data   map[string]string
	DryRun bool
}

// TokenResponse is the gateway's answer for one token.
// Failure mirrors Success so clients can sum either column.
type TokenResponse struct {
	Token      string `json:"token"`
	StatusCode int    `json:"status_code"`
	Success    int    `json:"success"`
	Failure    int    `json:"failure"`
	Response   any    `json:"response"`
}

// OK reports whether the gateway accepted the push.
func (t TokenResponse) OK() bool {
	return t.Success == 1
}

// DispatchResult aggregates a batch send. Responses follow the order of RequestedTokens.
type DispatchResult struct {
	DispatchID      string          `json:"dispatch_id"`
	RequestedTokens []string        `json:"requested_tokens"`
	SuccessCount    int             `json:"success"`
	FailureCount    int             `json:"failure"`
	Responses       []TokenResponse `json:"responses"`
	DryRun          bool            `json:"dry_run"`
}

// AlertMessage is the caller-supplied content of a push. An empty Title is
// replaced with a default by the alert service.
type AlertMessage struct {
	Title  string
	Body   string
	Data   map[string]string
	DryRun bool
}
