package session

// Middleware gates a request on the matched route's session policy,
// before the handler runs.
//
// required=false (or no manager configured) passes through. Otherwise
// the Cookie header is resolved through the manager: a live session
// passes through and is returned; no session or an expired one fails
// with *RedirectError when the route names a redirect target, else with
// ErrAuthenticationRequired.
func Middleware(mgr *Manager, required bool, redirectURL, cookieHeader string) (*Session, error) {
	if !required || mgr == nil {
		return nil, nil
	}

	sess, err := mgr.Get(cookieHeader)
	if err != nil && err != ErrSessionExpired {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	if redirectURL != "" {
		return nil, &RedirectError{URL: redirectURL}
	}
	return nil, ErrAuthenticationRequired
}
