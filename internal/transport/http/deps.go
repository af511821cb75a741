package http

import (
	"github.com/yuutasakka/zeroshin-verify/internal/application/admin"
	"github.com/yuutasakka/zeroshin-verify/internal/application/csrf"
	"github.com/yuutasakka/zeroshin-verify/internal/application/otp"
	"github.com/yuutasakka/zeroshin-verify/internal/application/session"
	"github.com/yuutasakka/zeroshin-verify/internal/application/tokens"
)

// Deps holds all infrastructure dependencies for the router. Services with
// background goroutines are constructed in main so their sweeps share the
// process lifecycle and get closed on shutdown.
type Deps struct {
	OTPService    otp.Service
	AdminUserRepo admin.UserStore

	CSRFRegistry *csrf.Registry
	Sessions     *session.Manager
	TokenManager *tokens.Manager
}
