package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/talent-pipeline/internal/config"
	"github.com/jonathan/talent-pipeline/internal/server"
	"github.com/jonathan/talent-pipeline/internal/types"
)

var (
	tokenUser string
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a session token for local testing",
	Long:  `Sign a bearer token for an existing user id with the configured JWT secret.`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User id (uuid)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "Role: TALENT, CLIENT or ADMIN")
	_ = tokenCmd.MarkFlagRequired("user")
	_ = tokenCmd.MarkFlagRequired("role")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	userID, err := uuid.Parse(tokenUser)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", tokenUser, err)
	}
	role := types.Role(strings.ToUpper(tokenRole))
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", tokenRole)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	jwtConfig, err := config.NewJWTConfig(cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}

	token, err := server.NewJWTService(jwtConfig).GenerateToken(userID, role)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
