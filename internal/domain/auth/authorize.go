package auth

// Authorize reports whether identity may perform an operation requiring any of required.
// A nil identity is never authorized. With no required roles any identity passes.
func Authorize(identity *Identity, required ...Role) bool {
	if identity == nil {
		return false
	}
	if len(required) == 0 {
		return true
	}
	for _, want := range required {
		if identity.HasRole(want) {
			return true
		}
	}
	return false
}
