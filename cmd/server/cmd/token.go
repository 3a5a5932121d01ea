package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/whitecross/gateway/internal/auth"
)

var tokenOpts struct {
	subject    string
	role       string
	email      string
	schoolID   string
	districtID string
	ttl        time.Duration
	secret     string
	issuer     string
}

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed session token for local testing",
		Long: `Mint an HS256 session token the gateway will accept, signed with
--secret (default: $JWT_SECRET). Intended for local development and smoke
tests against a gateway running with the same secret.

Examples:
  whitecross token --sub 7a8b9c0d-1e2f-4a3b-8c4d-5e6f7a8b9c0d --role NURSE
  curl -H "Authorization: Bearer $(whitecross token --sub ... --role ADMIN)" localhost:8080/api/v1/auth/me`,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := mintToken()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&tokenOpts.subject, "sub", "", "user id (required)")
	f.StringVar(&tokenOpts.role, "role", string(auth.RoleNurse), "role (ADMIN, DISTRICT_ADMIN, SCHOOL_ADMIN, NURSE, COUNSELOR, STAFF, VIEWER)")
	f.StringVar(&tokenOpts.email, "email", "", "email claim")
	f.StringVar(&tokenOpts.schoolID, "school", "", "school id claim")
	f.StringVar(&tokenOpts.districtID, "district", "", "district id claim")
	f.DurationVar(&tokenOpts.ttl, "ttl", time.Hour, "token lifetime")
	f.StringVar(&tokenOpts.secret, "secret", "", "signing secret (default: $JWT_SECRET)")
	f.StringVar(&tokenOpts.issuer, "issuer", "white-cross", "issuer claim")
	return cmd
}

func mintToken() (string, error) {
	secret := tokenOpts.secret
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	if secret == "" {
		return "", errors.New("signing secret required: pass --secret or set JWT_SECRET")
	}
	if tokenOpts.subject == "" {
		return "", errors.New("--sub is required")
	}
	role := auth.NormalizeRole(tokenOpts.role)
	if role == "" {
		return "", fmt.Errorf("unknown role %q", tokenOpts.role)
	}

	manager := auth.NewJWTManager(secret, tokenOpts.ttl, tokenOpts.issuer)
	return manager.Generate(auth.Identity{
		Subject:    tokenOpts.subject,
		Email:      tokenOpts.email,
		Role:       role,
		SchoolID:   tokenOpts.schoolID,
		DistrictID: tokenOpts.districtID,
	})
}
