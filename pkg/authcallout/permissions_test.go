package authcallout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerivePermissionsAuthenticatedHostGetsScopedSubjects(t *testing.T) {
	perms := derivePermissions(true, "ABC123", "Device-1")

	assert.ElementsMatch(t, []string{
		"AUTH.validate",
		"AUTH.abc123.>",
		"_AUTH_INBOX.abc123.>",
		"INVENTORY.device-1.>",
	}, perms.Publish)

	assert.ElementsMatch(t, []string{
		"AUTH.abc123.>",
		"_AUTH_INBOX.abc123.>",
		"INVENTORY.device-1.>",
	}, perms.Subscribe)
}

func TestDerivePermissionsUnauthenticatedHostGetsGuardSubjectOnly(t *testing.T) {
	perms := derivePermissions(false, "ABC123", "Device-1")

	assert.Equal(t, []string{"INVENTORY.unauthenticated.device-1.update.>"}, perms.Publish)
	assert.Empty(t, perms.Subscribe)
}
