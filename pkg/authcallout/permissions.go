package authcallout

import "github.com/holo-host/hpos-core/pkg/authtoken"

// derivePermissions implements §4.2.1 step 5: allow publish/subscribe
// on a narrow per-host subject set when hoster validation succeeded,
// or a single inventory-update publish subject otherwise.
func derivePermissions(hosterValid bool, hostPubkey, deviceID string) authtoken.Permissions {
	pk := lowerPubkey(hostPubkey)
	did := lowerDeviceID(deviceID)

	if hosterValid {
		subjects := []string{
			"AUTH.validate",
			"AUTH." + pk + ".>",
			"_AUTH_INBOX." + pk + ".>",
			"INVENTORY." + did + ".>",
		}
		return authtoken.Permissions{
			Publish:   subjects,
			Subscribe: subjects[1:],
		}
	}

	return authtoken.Permissions{
		Publish: []string{"INVENTORY.unauthenticated." + did + ".update.>"},
	}
}
