package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xela07ax/spaceai-crm-gateway/internal/audit"
	"github.com/xela07ax/spaceai-crm-gateway/internal/connectors"
	"github.com/xela07ax/spaceai-crm-gateway/internal/console/service"
	"github.com/xela07ax/spaceai-crm-gateway/internal/domain"
	"github.com/xela07ax/spaceai-crm-gateway/internal/infra"
	"github.com/xela07ax/spaceai-crm-gateway/internal/infra/auth"
	"github.com/xela07ax/spaceai-crm-gateway/internal/policy"
	"github.com/xela07ax/spaceai-crm-gateway/internal/store"
)

// app: общие ресурсы команд консоли. Поднимаются лениво: token не требует БД.
type app struct {
	configPath string
	cfg        *infra.Config
	logger     *zap.Logger
}

func main() {
	a := &app{}
	root := &cobra.Command{
		Use:           "console",
		Short:         "Operator console for the CRM MCP gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := infra.LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			logger, err := infra.NewLogger(cfg.Logger)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config.yaml")

	root.AddCommand(
		a.migrateCmd(),
		a.grantCmd(true),
		a.grantCmd(false),
		a.permissionsCmd(),
		a.agentCmd(),
		a.tokenCmd(),
		a.auditCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "console:", err)
		os.Exit(1)
	}
}

// openStore открывает хранилище со всеми схемами: доменными, прав и аудита.
func (a *app) openStore(ctx context.Context) (*store.SQLStore, error) {
	domains, err := connectors.Domains(nil)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(store.Config{
		Driver:          a.cfg.Database.Driver,
		URL:             a.cfg.Database.URL,
		MaxOpenConns:    int(a.cfg.Database.MaxConns),
		MaxIdleConns:    int(a.cfg.Database.MinConns),
		ConnMaxLifetime: a.cfg.Database.ConnMaxLifetime,
	}, append(connectors.Schemas(domains), policy.Schema, audit.Schema)...)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.Ping(pingCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return s, nil
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables and indexes for all domains, permissions and audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Migrate(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("migrations applied", zap.String("driver", a.cfg.Database.Driver))
			return nil
		},
	}
}

func (a *app) policyService(s store.Store) *service.PolicyService {
	domains, _ := connectors.Domains(nil)
	return service.NewPolicyService(policy.NewStoreSource(s), connectors.Modules(domains), a.logger)
}

// grantCmd: grant и revoke отличаются только значением флага.
func (a *app) grantCmd(grant bool) *cobra.Command {
	use, short := "grant", "Allow actions on a module for an agent"
	if !grant {
		use, short = "revoke", "Deny actions on a module for an agent"
	}
	return &cobra.Command{
		Use:     use + " <agent-id> <module> <action>...",
		Short:   short,
		Example: "  console " + use + " crm-agent Tasks view create edit",
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			actions := make([]domain.Action, 0, len(args)-2)
			for _, raw := range args[2:] {
				act, err := domain.ParseAction(strings.ToLower(raw))
				if err != nil {
					return err
				}
				actions = append(actions, act)
			}

			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			svc := a.policyService(s)
			var flags domain.PermissionFlags
			if grant {
				flags, err = svc.Grant(cmd.Context(), args[0], args[1], actions...)
			} else {
				flags, err = svc.Revoke(cmd.Context(), args[0], args[1], actions...)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), flags)
		},
	}
}

func (a *app) permissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions <agent-id>",
		Short: "Show the permission matrix of an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			matrix, err := a.policyService(s).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), matrix)
		},
	}
}

func (a *app) agentService() (*service.AgentService, func(), error) {
	if a.cfg.Redis.Addr == "" {
		return nil, nil, fmt.Errorf("redis.addr is not configured: kill-switch is unavailable")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	return service.NewAgentService(rdb, a.logger), func() { rdb.Close() }, nil
}

// agentCmd: kill-switch: блокировка агента доходит до всех узлов шлюза через Pub/Sub.
func (a *app) agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Block, unblock and list agents via the kill-switch",
	}

	state := func(use, short string, fn func(*service.AgentService, context.Context, string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <agent-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, closeFn, err := a.agentService()
				if err != nil {
					return err
				}
				defer closeFn()
				return fn(svc, cmd.Context(), args[0])
			},
		}
	}

	cmd.AddCommand(
		state("block", "Block an agent on every gateway node", (*service.AgentService).BlockAgent),
		state("unblock", "Unblock an agent", (*service.AgentService).UnblockAgent),
		&cobra.Command{
			Use:   "list",
			Short: "List blocked agents",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, closeFn, err := a.agentService()
				if err != nil {
					return err
				}
				defer closeFn()
				ids, err := svc.ListBlocked(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(cmd.OutOrStdout(), id)
				}
				return nil
			},
		},
	)
	return cmd
}

func (a *app) tokenCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "token <agent-id>",
		Short: "Issue a signed bearer token for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(a.cfg.Auth.PrivateKey) == 0 {
				return fmt.Errorf("auth.private_key_path is not configured")
			}
			key, err := auth.ParseRSAPrivateKey(a.cfg.Auth.PrivateKey)
			if err != nil {
				return err
			}
			svc := service.NewAuthService(auth.NewIssuer(key, a.cfg.Auth.Issuer, a.cfg.Auth.TokenTTL))
			resp, err := svc.GenerateToken(args[0], name)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "human-readable agent name written to the audit log")
	return cmd
}

func (a *app) auditCmd() *cobra.Command {
	var (
		f      audit.Filter
		result string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if result != "" {
				f.Result = audit.Result(result)
			}
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := service.NewAuditService(audit.NewStoreSink(s)).FetchLogs(cmd.Context(), f)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			return writeAuditTable(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().StringVar(&f.AgentID, "agent", "", "filter by agent id")
	cmd.Flags().StringVar(&f.Module, "module", "", "filter by module (Tasks, Leads, Contacts)")
	cmd.Flags().StringVar(&result, "result", "", "filter by result (Success, Error)")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeAuditTable(w io.Writer, entries []audit.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tAGENT\tMODULE\tACTION\tRESULT\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.AgentID, e.Module, e.Action, e.Result, e.ErrorMessage)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	for _, m := range service.Summarize(entries) {
		fmt.Fprintf(w, "%s: %d success, %d error\n", m.Module, m.Success, m.Error)
	}
	return nil
}
