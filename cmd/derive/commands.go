/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tomoncle/derive/database"
	"github.com/tomoncle/derive/person"
	"github.com/tomoncle/derive/query"
	"github.com/tomoncle/derive/repository"
	"github.com/tomoncle/derive/types"
	"github.com/tomoncle/derive/utils"
	"github.com/uptrace/bun"
)

type options struct {
	configPath string
	logLevel   string
	asJSON     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "derive",
		Short:        "Derive SQL from repository method names",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.logLevel != "" {
				utils.ConfigureLogLevel(opts.logLevel)
			}
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		newExplainCmd(opts),
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newPeopleCmd(opts),
	)
	return root
}

// session is an initialized database with the Person repository built on it.
type session struct {
	cfg  *database.Config
	db   *bun.DB
	repo *person.Repository
}

func openSession(ctx context.Context, opts *options) (*session, error) {
	cfg, err := database.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	db, err := database.InitDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var extra []query.Method
	if path := cfg.QueryConfig.DeclarationFile; path != "" {
		decls, err := repository.LoadDeclarations(path)
		if err != nil {
			_ = database.CloseDB()
			return nil, err
		}
		extra = decls.Methods
	}
	repo, err := person.NewRepository(db, repository.OptionsFromConfig(cfg.QueryConfig), extra...)
	if err != nil {
		_ = database.CloseDB()
		return nil, err
	}
	return &session{cfg: cfg, db: db, repo: repo}, nil
}

func (s *session) Close() error { return database.CloseDB() }

func newExplainCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "explain [method...]",
		Short: "Print the derived plan of repository methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()

			derived := s.repo.Derived()
			names := args
			if len(names) == 0 {
				names = derived.Methods()
			}
			plans := make([]types.JsonObject, 0, len(names))
			for _, name := range names {
				plan, err := derived.Plan(name)
				if err != nil {
					return err
				}
				if !opts.asJSON {
					fmt.Fprintf(cmd.OutOrStdout(), "%-45s %s\n", name, plan)
					continue
				}
				plans = append(plans, plan.Describe())
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), plans)
			}
			return nil
		},
	}
}

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the Person schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := database.RunMigrations(cmd.Context()); err != nil {
				return err
			}
			migrations, err := database.NewMigrationManager(s.db, s.cfg, nil).GetAppliedMigrations(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range migrations {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newSeedCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Run the configured SQL seed scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := database.RunMigrations(cmd.Context()); err != nil {
				return err
			}
			return database.InitData(cmd.Context())
		},
	}
}

func newPeopleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "people <method> [arg...]",
		Short: "Run a declared Person repository method",
		Long: `Run a declared Person repository method. Arguments are parsed by the
declared parameter types: dates as 2006-01-02, lists comma separated.
Modifying methods run in their own transaction.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer s.Close()
			result, err := runMethod(cmd.Context(), s, args[0], args[1:])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result, opts.asJSON)
		},
	}
}

// runMethod parses raw against the declared parameters of method and
// dispatches by the plan kind.
func runMethod(ctx context.Context, s *session, method string, raw []string) (any, error) {
	derived := s.repo.Derived()
	plan, err := derived.Plan(method)
	if err != nil {
		return nil, err
	}
	params := plan.Method.Params
	if len(raw) != len(params) {
		return nil, fmt.Errorf("%s: %w: expected %d arguments, got %d", method, query.ErrArityMismatch, len(params), len(raw))
	}
	args := make([]any, len(raw))
	for i, p := range params {
		if args[i], err = query.ParseValue(p.Type, raw[i]); err != nil {
			return nil, fmt.Errorf("%s: argument %s: %w", method, p.Name, err)
		}
	}

	switch {
	case plan.Kind.Mutating():
		var n int64
		err := repository.RunInTx(ctx, s.db, func(ctx context.Context, tx *bun.Tx) error {
			var err error
			n, err = derived.Modify(ctx, tx, method, args...)
			return err
		})
		return n, err
	case plan.Kind == query.KindCount:
		return derived.Count(ctx, method, args...)
	case plan.Kind == query.KindExists:
		return derived.Exists(ctx, method, args...)
	case plan.Annotated() && strings.Contains(strings.ToLower(plan.Statement.SQL), "count("):
		return derived.Count(ctx, method, args...)
	case plan.Tree != nil && plan.Tree.Limit == 1:
		return derived.One(ctx, method, args...)
	default:
		return derived.Many(ctx, method, args...)
	}
}

func printResult(w io.Writer, result any, asJSON bool) error {
	if asJSON {
		return writeJSON(w, result)
	}
	switch v := result.(type) {
	case []*person.Person:
		for _, p := range v {
			printPerson(w, p)
		}
	case *person.Person:
		if v != nil {
			printPerson(w, v)
		}
	default:
		fmt.Fprintln(w, v)
	}
	return nil
}

func printPerson(w io.Writer, p *person.Person) {
	birth := ""
	if !p.Birth.IsZero() {
		birth = p.Birth.Format("2006-01-02")
	}
	fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.LastName, p.Email, birth, p.AddressID)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
