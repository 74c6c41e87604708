// Package router maps the /api/v1 surface onto handlers and middleware chains.
package router

import (
	"net/http"

	"github.com/coinquest/backend/internal/auth"
	"github.com/coinquest/backend/internal/dashboard"
	"github.com/coinquest/backend/internal/handlers"
	"github.com/coinquest/backend/internal/middleware"
	"github.com/coinquest/backend/internal/models"
	"github.com/coinquest/backend/internal/registry"
)

// Handlers groups every endpoint implementation the router serves.
type Handlers struct {
	Auth        *auth.Handler
	Registry    *registry.Handler
	Dashboard   *dashboard.Handler
	Tasks       *handlers.TaskHandler
	Withdrawals *handlers.WithdrawalHandler
	Rewards     *handlers.RewardHandler
}

// New returns an http.Handler that serves the API under /api/v1.
// Chains: Authenticate -> RequireRole (where restricted) -> handler, with the
// per-account limiter in front of withdrawal requests.
func New(h Handlers, tokens middleware.TokenValidator, withdrawalLimiter *middleware.AccountRateLimiter) http.Handler {
	mux := http.NewServeMux()
	const base = "/api/v1"

	authed := middleware.Authenticate(tokens)
	role := func(roles ...string) func(http.HandlerFunc) http.Handler {
		guard := middleware.RequireRole(roles...)
		return func(fn http.HandlerFunc) http.Handler { return authed(guard(fn)) }
	}
	anyone := role(models.RoleUser, models.RoleCreator, models.RoleAdmin)
	creator := role(models.RoleCreator)
	reviewer := role(models.RoleCreator, models.RoleAdmin)
	admin := role(models.RoleAdmin)

	// Auth
	mux.HandleFunc("POST "+base+"/auth/register", h.Auth.Register)
	mux.HandleFunc("POST "+base+"/auth/login", h.Auth.Login)

	// Account
	mux.Handle("GET "+base+"/account/me", anyone(h.Dashboard.GetMe))
	mux.Handle("GET "+base+"/transactions", anyone(h.Dashboard.ListTransactions))

	// Coin values
	mux.HandleFunc("GET "+base+"/coin-values", h.Registry.ListValues)
	mux.Handle("PUT "+base+"/admin/coin-values/{key}", admin(h.Registry.SetValue))

	// Rewards and creator funding
	mux.Handle("POST "+base+"/rewards", admin(h.Rewards.Award))
	mux.Handle("POST "+base+"/admin/creators/{id}/budget", admin(h.Rewards.FundCreator))
	mux.Handle("GET "+base+"/admin/accounts/{id}/reconcile", admin(h.Dashboard.Reconcile))

	// Tasks
	mux.Handle("GET "+base+"/tasks", anyone(h.Tasks.ListActive))
	mux.Handle("GET "+base+"/creator/tasks", creator(h.Tasks.ListMine))
	mux.Handle("POST "+base+"/creator/tasks", creator(h.Tasks.CreateTask))
	mux.Handle("PATCH "+base+"/creator/tasks/{id}", creator(h.Tasks.UpdateTask))
	mux.Handle("DELETE "+base+"/creator/tasks/{id}", creator(h.Tasks.DeleteTask))

	// Submissions
	mux.Handle("POST "+base+"/tasks/{id}/submissions", role(models.RoleUser)(h.Tasks.Submit))
	mux.Handle("GET "+base+"/tasks/{id}/submissions", reviewer(h.Tasks.ListSubmissions))
	mux.Handle("GET "+base+"/submissions", anyone(h.Tasks.MySubmissions))
	mux.Handle("POST "+base+"/submissions/{id}/review", reviewer(h.Tasks.ReviewSubmission))

	// Withdrawals
	requestWithdrawal := middleware.RequireRole(models.RoleUser, models.RoleCreator)(
		withdrawalLimiter.Handler(http.HandlerFunc(h.Withdrawals.Request)))
	mux.Handle("POST "+base+"/withdrawals", authed(requestWithdrawal))
	mux.Handle("GET "+base+"/withdrawals", anyone(h.Withdrawals.ListMine))
	mux.Handle("GET "+base+"/admin/withdrawals", admin(h.Withdrawals.ListByStatus))
	mux.Handle("PATCH "+base+"/admin/withdrawals/{id}", admin(h.Withdrawals.SetStatus))

	return mux
}
