package authcallout

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/holo-host/hpos-core/pkg/authtoken"
	"github.com/holo-host/hpos-core/pkg/hostcoreerr"
	"github.com/holo-host/hpos-core/pkg/identity"
	"github.com/holo-host/hpos-core/pkg/types"
)

// ValidateRequest is the AUTH.validate payload — §4.2.2.
type ValidateRequest struct {
	DeviceID       string `json:"device_id" validate:"required"`
	HostPubkey     string `json:"host_pubkey" validate:"required"`
	MaybeSysPubkey string `json:"maybe_sys_pubkey,omitempty"`
	Nonce          string `json:"nonce" validate:"required"`
}

// ValidateResponse is returned on success, with HostPubkey also carried
// as a reply tag so the framing routes it to a per-host subject.
type ValidateResponse struct {
	Status     types.HostStatus `json:"status"`
	HostPubkey string           `json:"host_pubkey"`
	HostJWT    string           `json:"host_jwt"`
	SysJWT     string           `json:"sys_jwt,omitempty"`
}

// HandleValidate runs the §4.2.2 algorithm: verify X-Signature over the
// raw payload with host_pubkey, mark the host Authorized, and mint
// host.jwt/sys.jwt user tokens in their respective accounts.
func (s *Service) HandleValidate(ctx context.Context, payload []byte, req ValidateRequest, signatureHeader string) (ValidateResponse, error) {
	if err := validate.Struct(req); err != nil {
		return ValidateResponse{}, hostcoreerr.New(hostcoreerr.Request, fmt.Errorf("authcallout: validate request shape: %w", err))
	}

	pub, err := identity.DecodeNkey(req.HostPubkey, identity.PrefixHost)
	if err != nil {
		return ValidateResponse{}, hostcoreerr.New(hostcoreerr.Request, fmt.Errorf("authcallout: decoding host_pubkey: %w", err))
	}
	sig, err := rawB64.DecodeString(signatureHeader)
	if err != nil {
		return ValidateResponse{}, hostcoreerr.New(hostcoreerr.Request, fmt.Errorf("authcallout: decoding X-Signature: %w", err))
	}
	if !ed25519.Verify(pub, payload, sig) {
		return ValidateResponse{}, hostcoreerr.New(hostcoreerr.Cryptographic, errors.New("authcallout: X-Signature verification failed"))
	}

	if s.Nonces != nil {
		if err := s.Nonces.CheckAndRecord(req.DeviceID, req.Nonce); err != nil {
			return ValidateResponse{}, hostcoreerr.New(hostcoreerr.Authentication, err)
		}
	}

	host, err := s.Store.GetHostByDeviceID(ctx, req.DeviceID)
	if err != nil {
		return ValidateResponse{}, fmt.Errorf("authcallout: looking up host: %w", err)
	}
	host.Status = types.HostStatusAuthorized
	if _, err := s.Store.UpsertHost(ctx, host); err != nil {
		return ValidateResponse{}, fmt.Errorf("authcallout: marking host authorized: %w", err)
	}

	hostJWT, err := s.mintUserJWT(s.SigningKey, req.HostPubkey)
	if err != nil {
		return ValidateResponse{}, hostcoreerr.New(hostcoreerr.Cryptographic, fmt.Errorf("authcallout: minting host.jwt: %w", err))
	}

	var sysJWT string
	if req.MaybeSysPubkey != "" {
		sysJWT, err = s.mintUserJWT(s.SysKey, req.MaybeSysPubkey)
		if err != nil {
			return ValidateResponse{}, hostcoreerr.New(hostcoreerr.Cryptographic, fmt.Errorf("authcallout: minting sys.jwt: %w", err))
		}
	}

	return ValidateResponse{
		Status:     types.HostStatusAuthorized,
		HostPubkey: req.HostPubkey,
		HostJWT:    hostJWT,
		SysJWT:     sysJWT,
	}, nil
}

// mintUserJWT signs a minimal user claim under account, scoped to
// subject, for the host or sys credential files the host agent
// persists locally via pkg/identity.
func (s *Service) mintUserJWT(account identity.KeyPair, subject string) (string, error) {
	issuerNkey, err := account.PublicNkey()
	if err != nil {
		return "", err
	}
	claims := authtoken.Claims{
		IssuedAt: time.Now().Unix(),
		Issuer:   issuerNkey,
		Subject:  subject,
		Expires:  time.Now().Add(claimTTL).Unix(),
		Nats:     authtoken.NatsClaims{Type: "user"},
	}
	jti, err := authtoken.ComputeJTI(claims)
	if err != nil {
		return "", err
	}
	claims.JWTID = jti
	return authtoken.Encode(claims, account)
}
