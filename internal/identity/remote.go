package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmeshcher/groupbuy/internal/validation"
)

// RemoteResolver разрешает токены через внешний провайдер аутентификации.
type RemoteResolver struct {
	baseURL    string
	httpClient *http.Client
}

type remoteUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		Name string `json:"name"`
	} `json:"user_metadata"`
}

// NewRemoteResolver создаёт HTTP-клиент провайдера по указанному адресу.
func NewRemoteResolver(baseURL string) *RemoteResolver {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &RemoteResolver{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Resolve запрашивает у провайдера пользователя, которому принадлежит токен.
// Идентификатор, непригодный для ключей хранилища, считается недействительным.
func (c *RemoteResolver) Resolve(ctx context.Context, credential string) (Principal, error) {
	if credential == "" {
		return Principal{}, ErrInvalidCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return Principal{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Principal{}, ErrInvalidCredential
	case resp.StatusCode != http.StatusOK:
		return Principal{}, fmt.Errorf("%w: unexpected status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var u remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return Principal{}, fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}
	if !validation.IsValidID(u.ID) {
		return Principal{}, ErrInvalidCredential
	}

	return Principal{
		UserID: u.ID,
		Email:  strings.TrimSpace(u.Email),
		Name:   strings.TrimSpace(u.UserMetadata.Name),
	}, nil
}
