package repositories

import (
	"fmt"
	"strconv"

	"github.com/desertthunder/festa/internal/models"
	"github.com/desertthunder/festa/internal/shared"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyVerifyID     = "verify_id"
	keyMemberID     = "member_id"
	keyRole         = "role"
)

// SessionRepository persists login credentials and the current user's identity.
type SessionRepository struct {
	store Store
}

// NewSessionRepository creates a [SessionRepository] over store.
func NewSessionRepository(store Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// Save stores every non-empty field of creds.
func (r *SessionRepository) Save(creds models.Credentials) error {
	fields := map[string]string{
		keyAccessToken:  creds.AccessToken,
		keyRefreshToken: creds.RefreshToken,
		keyRole:         creds.Role,
		keyVerifyID:     creds.VerifyID,
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := r.store.Put(NamespaceSession, key, value); err != nil {
			return err
		}
	}
	return nil
}

// AccessToken returns the stored bearer token or [shared.ErrNotAuthenticated].
func (r *SessionRepository) AccessToken() (string, error) {
	token, ok, err := r.store.Get(NamespaceSession, keyAccessToken)
	if err != nil {
		return "", err
	}
	if !ok || token == "" {
		return "", shared.ErrNotAuthenticated
	}
	return token, nil
}

// RefreshToken returns the stored refresh token, empty when none was issued.
func (r *SessionRepository) RefreshToken() (string, error) {
	token, _, err := r.store.Get(NamespaceSession, keyRefreshToken)
	return token, err
}

// Role returns the platform-level role reported at login.
func (r *SessionRepository) Role() (string, error) {
	role, _, err := r.store.Get(NamespaceSession, keyRole)
	return role, err
}

// Identity returns whatever stable identifiers are known for the current user.
func (r *SessionRepository) Identity() (models.Identity, error) {
	var id models.Identity

	verifyID, _, err := r.store.Get(NamespaceSession, keyVerifyID)
	if err != nil {
		return id, err
	}
	id.VerifyID = verifyID

	raw, ok, err := r.store.Get(NamespaceSession, keyMemberID)
	if err != nil {
		return id, err
	}
	if ok && raw != "" {
		memberID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return id, fmt.Errorf("corrupt member id %q: %w", raw, err)
		}
		id.MemberID = memberID
	}
	return id, nil
}

// SaveIdentity stores the non-zero fields of id, leaving the others untouched.
func (r *SessionRepository) SaveIdentity(id models.Identity) error {
	if id.VerifyID != "" {
		if err := r.store.Put(NamespaceSession, keyVerifyID, id.VerifyID); err != nil {
			return err
		}
	}
	if id.MemberID != 0 {
		if err := r.store.Put(NamespaceSession, keyMemberID, strconv.FormatInt(id.MemberID, 10)); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes all session state.
func (r *SessionRepository) Clear() error {
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyVerifyID, keyMemberID, keyRole} {
		if err := r.store.Delete(NamespaceSession, key); err != nil {
			return err
		}
	}
	return nil
}
