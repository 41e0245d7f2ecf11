package client

import (
	"context"
	"time"

	"clinicslots/pkg/auth"
	apperrors "clinicslots/pkg/errors"
)

type ProfileCompleteness struct {
	Complete      bool     `json:"complete"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// ProfileClient asks the patient profile service whether the signed-in
// patient may book.
type ProfileClient struct {
	http     *HttpClient
	identity auth.Identity
}

func NewProfileClient(baseURL string, timeout time.Duration, identity auth.Identity) *ProfileClient {
	return &ProfileClient{
		http:     NewHttpClient("profile service", baseURL, timeout),
		identity: identity,
	}
}

func (c *ProfileClient) IsProfileComplete(ctx context.Context) (bool, []string, error) {
	creds, ok := c.identity.Credentials()
	if !ok {
		return false, nil, apperrors.SignInRequired()
	}
	resp, err := c.http.GET(ctx, "/profile/completeness", bearer(creds.Bearer))
	if err != nil {
		return false, nil, err
	}
	if err := resp.Err(); err != nil {
		return false, nil, err
	}
	var result ProfileCompleteness
	if err := resp.DecodeData(&result); err != nil {
		return false, nil, apperrors.Internal("unexpected profile service response", err)
	}
	return result.Complete, result.MissingFields, nil
}

// CompleteProfile is used when no profile service is configured.
type CompleteProfile struct{}

func (CompleteProfile) IsProfileComplete(context.Context) (bool, []string, error) {
	return true, nil, nil
}
