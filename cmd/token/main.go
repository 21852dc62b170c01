// Package main mints operator tokens for the /integrations API using JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/config"
	"github.com/aura-platform/integrations/internal/auth"
	"github.com/aura-platform/integrations/pkg/logger"
)

func main() {
	subject := flag.String("sub", "operator", "operator id (token subject)")
	email := flag.String("email", "", "operator email")
	role := flag.String("role", auth.RoleAdmin, "admin or superadmin")
	flag.Parse()

	log := logger.New(logger.Options{Level: "warn"})
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}
	if *role != auth.RoleAdmin && *role != auth.RoleSuperAdmin {
		log.Fatal("unsupported role", zap.String("role", *role))
	}

	token, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours).Generate(*subject, *email, *role)
	if err != nil {
		log.Fatal("sign token", zap.Error(err))
	}
	fmt.Fprintln(os.Stdout, token)
}
