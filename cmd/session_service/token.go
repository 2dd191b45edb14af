package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/cvperfect-sessions/internal/config"
	"github.com/jonathan/cvperfect-sessions/internal/server"
)

var tokenOperatorID string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator token for the cleanup endpoint",
	Long:  `Generate a signed JWT accepted by POST /sessions/cleanup. Requires JWT_SECRET to be set.`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOperatorID, "operator-id", "", "Operator UUID to embed in the token (random if omitted)")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(_ *cobra.Command, _ []string) error {
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return err
	}

	operatorID := uuid.New()
	if tokenOperatorID != "" {
		operatorID, err = uuid.Parse(tokenOperatorID)
		if err != nil {
			return fmt.Errorf("invalid --operator-id: %w", err)
		}
	}

	token, err := server.NewJWTService(jwtConfig).GenerateToken(operatorID)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	fmt.Println(token)
	return nil
}
