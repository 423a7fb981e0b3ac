package constants

// Static route constants
const (
	APIRoute            = "/api"
	BillingWebhookRoute = "/webhooks/billing"
	AuthRegisterRoute   = "/auth/register"
	AuthActivateRoute   = "/auth/activate"
	AuthLoginRoute      = "/auth/login"
	AuthLogoutRoute     = "/auth/logout"
	SubscriptionSync    = "/subscription/sync"
	SubscriptionHistory = "/subscription/history"
	UserEntitlement     = "/user/entitlement"
	AdminWebhookStats   = "/admin/webhook-stats"
)
