//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"privatemsg/internal/chat"
	"privatemsg/internal/client"
	"privatemsg/internal/config"
	"privatemsg/internal/reconcile"
	"privatemsg/internal/session"
	"privatemsg/internal/store"
)

// Application bundles everything the binary needs after wiring.
type Application struct {
	Config  *config.Config
	Session *session.Session
	Store   *store.Store
	Service *chat.Service
}

// InitializeApplication assembles the messaging client from config and
// the session token. Wire generates the real body.
func InitializeApplication(cfg *config.Config, sess *session.Session) (*Application, error) {
	wire.Build(
		store.NewStore,
		ProvideReconciler,
		ProvideAPI,
		chat.NewService,
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil
}

func ProvideReconciler(st *store.Store, sess *session.Session) *reconcile.Reconciler {
	return reconcile.NewReconciler(st, sess.UserID)
}

func ProvideAPI(cfg *config.Config, sess *session.Session) chat.API {
	return client.NewClient(cfg, sess)
}
