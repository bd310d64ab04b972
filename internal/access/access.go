// Package access содержит правила доступа: кто аутентифицирован, кто
// администратор и кто владеет подпиской. Роль берётся только из Principal,
// полученного из проверенного токена.
package access

import (
	"fmt"

	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

// RequirePrincipal требует аутентифицированного субъекта.
func RequirePrincipal(p *models.Principal) error {
	if p == nil || p.UserUID == "" {
		return models.ErrUnauthenticated
	}
	return nil
}

// RequireAdmin требует роль администратора.
func RequireAdmin(p *models.Principal) error {
	if err := RequirePrincipal(p); err != nil {
		return err
	}
	if !p.IsAdmin() {
		return fmt.Errorf("%w: admin role required", models.ErrForbidden)
	}
	return nil
}

// RequireOwner требует, чтобы субъект был владельцем ресурса ownerUID.
// Администратор не получает доступа к чужим подпискам.
func RequireOwner(p *models.Principal, ownerUID string) error {
	if err := RequirePrincipal(p); err != nil {
		return err
	}
	if p.UserUID != ownerUID {
		return fmt.Errorf("%w: not the owner", models.ErrForbidden)
	}
	return nil
}
