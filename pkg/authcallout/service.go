package authcallout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/holo-host/hpos-core/pkg/authtoken"
	"github.com/holo-host/hpos-core/pkg/hostcoreerr"
	"github.com/holo-host/hpos-core/pkg/identity"
	"github.com/holo-host/hpos-core/pkg/log"
	"github.com/holo-host/hpos-core/pkg/store"
	"github.com/holo-host/hpos-core/pkg/types"
)

const claimTTL = 7 * 24 * time.Hour

// Service implements the Auth-Callout algorithm in §4.2: it consumes
// authorization-request tokens, validates them against the store, and
// mints permission-scoped user claims.
type Service struct {
	Store      *store.DB
	SigningKey identity.KeyPair // HPOS account key: mints host.jwt and the inner user claim
	SysKey     identity.KeyPair // SYS account key: mints sys.jwt
	RootKey    identity.KeyPair // root account key: wraps the authorization-response claim
	Nonces     *NonceCache
}

// ResponseBody is the authorization-response claim's body: it carries
// the inner signed user token, per §4.2.1 step 7.
type ResponseBody struct {
	IssuedAt int64  `json:"iat"`
	Issuer   string `json:"iss"`
	Subject  string `json:"sub"`
	Audience string `json:"aud"`
	JWT      string `json:"jwt"`
}

// HandleCallout runs the full §4.2.1 algorithm against an inbound
// authorization-request token and returns the signed
// authorization-response token.
func (s *Service) HandleCallout(ctx context.Context, outerToken string) (string, error) {
	body, err := VerifyCallout(outerToken, s.SigningKey.Public)
	if err != nil {
		return "", fmt.Errorf("authcallout: %w", err)
	}

	uat, err := DecodeUserAuthToken(body.UserAuthToken)
	if err != nil {
		return "", err
	}
	if err := uat.Verify(); err != nil {
		return "", err
	}
	if s.Nonces != nil {
		if err := s.Nonces.CheckAndRecord(uat.DeviceID, uat.Nonce); err != nil {
			return "", hostcoreerr.New(hostcoreerr.Authentication, err)
		}
	}

	hosterValid, err := s.validateHoster(ctx, uat)
	if err != nil {
		log.Errorf("authcallout: hoster validation error, proceeding with guard permissions", err)
		hosterValid = false
	}

	perms := derivePermissions(hosterValid, uat.HostPubkey, uat.DeviceID)

	signingNkey, err := s.SigningKey.PublicNkey()
	if err != nil {
		return "", hostcoreerr.New(hostcoreerr.Cryptographic, fmt.Errorf("authcallout: encoding signing account nkey: %w", err))
	}
	rootNkey, err := s.RootKey.PublicNkey()
	if err != nil {
		return "", hostcoreerr.New(hostcoreerr.Cryptographic, fmt.Errorf("authcallout: encoding root account nkey: %w", err))
	}

	claims := authtoken.Claims{
		IssuedAt:      time.Now().Unix(),
		Issuer:        signingNkey,
		Subject:       body.UserNkey,
		IssuerAccount: rootNkey,
		Expires:       time.Now().Add(claimTTL).Unix(),
		Nats:          authtoken.NatsClaims{Type: "user", Permissions: perms},
	}
	jti, err := authtoken.ComputeJTI(claims)
	if err != nil {
		return "", err
	}
	claims.JWTID = jti

	userToken, err := authtoken.Encode(claims, s.SigningKey)
	if err != nil {
		return "", hostcoreerr.New(hostcoreerr.Cryptographic, fmt.Errorf("authcallout: signing user claim: %w", err))
	}

	responseBody := ResponseBody{
		IssuedAt: time.Now().Unix(),
		Issuer:   rootNkey,
		Subject:  body.UserNkey,
		Audience: body.ServerID,
		JWT:      userToken,
	}
	responseToken, err := authtoken.EncodeBody(responseBody, s.RootKey)
	if err != nil {
		return "", hostcoreerr.New(hostcoreerr.Cryptographic, fmt.Errorf("authcallout: signing authorization-response: %w", err))
	}
	return responseToken, nil
}

// validateHoster runs §4.2.1 step 4: the hoster-validation aggregation,
// gated on both hoster_hc_pubkey and email being present, and — on
// success — upserts the Host document and the bidirectional
// Host<->Hoster reference.
func (s *Service) validateHoster(ctx context.Context, uat UserAuthToken) (bool, error) {
	if uat.HosterHcPubkey == "" || uat.Email == "" {
		return false, nil
	}

	match, err := s.Store.FindHosterByPubkey(ctx, uat.HosterHcPubkey)
	if errors.Is(err, store.ErrNotFound()) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if match.Email != uat.Email || match.Pubkey != uat.HosterHcPubkey {
		return false, nil
	}

	host, err := s.Store.UpsertHost(ctx, types.Host{
		DeviceID: uat.DeviceID,
		Status:   types.HostStatusAuthenticated,
	})
	if err != nil {
		return false, err
	}
	if err := s.Store.AppendAssignedHost(ctx, match.HosterID, host.ID); err != nil {
		return false, err
	}
	return true, nil
}
