package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/StrahinjaMijatovic/EUprava25/internal/certlink"
	"github.com/StrahinjaMijatovic/EUprava25/internal/config"
	"github.com/StrahinjaMijatovic/EUprava25/internal/db"
	"github.com/StrahinjaMijatovic/EUprava25/internal/domain"
	"github.com/StrahinjaMijatovic/EUprava25/internal/engine"
	"github.com/StrahinjaMijatovic/EUprava25/internal/identity"
	"github.com/StrahinjaMijatovic/EUprava25/internal/migrate"
	"github.com/StrahinjaMijatovic/EUprava25/internal/repo"
	"github.com/StrahinjaMijatovic/EUprava25/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "euprava",
	Short: "EUprava citizen-services workflow portal",
	Long: `EUprava federates the school and health domains behind one identity.
Citizens file enrollments, absences, appointments and card requests; reviewers
drive them through per-kind status workflows. School-domain approvals can be
gated on medical certificates issued by the health domain.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("EUPRAVA")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "euprava.yml", "config file path")
	rootCmd.PersistentFlags().String("db", "", "sqlite database path (overrides config)")
	rootCmd.PersistentFlags().String("jwt-secret", "", "JWT signing secret (overrides config)")
	rootCmd.PersistentFlags().String("listen", "", "listen address (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("jwt-secret", rootCmd.PersistentFlags().Lookup("jwt-secret"))
	_ = viper.BindPFlag("listen", rootCmd.PersistentFlags().Lookup("listen"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(adminCmd())
}

// loadConfig layers flag and environment overrides on top of the YAML file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("db"); v != "" {
		cfg.Database.Path = v
	}
	if v := viper.GetString("jwt-secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("listen"); v != "" {
		cfg.Listen = v
	}
	return cfg, nil
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Path: cfg.Database.Path})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// newLinker picks the certificate resolver: remote health service when
// configured, the local store otherwise.
func newLinker(cfg *config.Config, r repo.Repo) *certlink.Linker {
	var resolver certlink.Resolver
	if cfg.Health.ResolverURL != "" {
		resolver = &certlink.HTTPResolver{
			BaseURL: cfg.Health.ResolverURL,
			Token:   cfg.Health.ResolverToken,
		}
	} else {
		resolver = certlink.ResolverFunc(r.ResolveCertificate)
	}
	return &certlink.Linker{Resolver: resolver, Timeout: cfg.Health.VerifyTimeout.Std()}
}

func withEngine(fn func(ctx context.Context, e *engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	e := engine.New(conn, newLinker(cfg, repo.Repo{DB: conn}), nil)
	return fn(context.Background(), e)
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Listen = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			e := engine.New(conn, newLinker(cfg, repo.Repo{DB: conn}), nil)
			handler, err := server.New(server.Config{
				Engine:   e,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: cfg.Auth.JWTSecret},
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{Addr: cfg.Listen, Handler: handler}
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				fmt.Printf("Serving EUprava API on http://%s%s\n", cfg.Listen, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Println("migrations applied")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var sub, role, email, firstName, lastName string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("jwt secret is required (--jwt-secret or EUPRAVA_JWT_SECRET)")
			}
			if !identity.KnownRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			token, err := identity.Issue(identity.Claim{
				SubjectID: sub,
				Role:      role,
				Email:     email,
				FirstName: firstName,
				LastName:  lastName,
			}, cfg.Auth.JWTSecret, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&sub, "sub", "", "subject id")
	cmd.Flags().StringVar(&role, "role", "", "role (ucenik, roditelj, nastavnik, administracija, pacijent, lekar, medicinska_sestra, administrator, admin)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name claim")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *engine.Engine) error {
				doctor := identity.Claim{SubjectID: "lekar-1", Role: identity.RoleLekar}
				parent := identity.Claim{SubjectID: "roditelj-1", Role: identity.RoleRoditelj}
				student := identity.Claim{SubjectID: "ucenik-1", Role: identity.RoleUcenik}
				patient := identity.Claim{SubjectID: "pacijent-1", Role: identity.RolePacijent}

				cert, err := e.IssueCertificate(ctx, doctor, engine.IssueCertificateInput{
					PatientID:   parent.SubjectID,
					PatientName: "Petar Petrović",
					Type:        "lekarsko uverenje",
					ValidFrom:   time.Now().AddDate(0, 0, -7).Format("2006-01-02"),
					ValidTo:     time.Now().AddDate(0, 6, 0).Format("2006-01-02"),
				})
				if err != nil {
					return err
				}
				if _, err := e.CreateEnrollment(ctx, parent, engine.CreateEnrollmentInput{
					FirstName:    "Marko",
					LastName:     "Petrović",
					DateOfBirth:  "2018-03-11",
					SchoolYear:   "2026/27",
					HealthCertID: &cert.ID,
				}); err != nil {
					return err
				}
				if _, err := e.CreateAbsence(ctx, student, engine.CreateAbsenceInput{
					StartDate: time.Now().AddDate(0, 0, -3).Format("2006-01-02"),
					EndDate:   time.Now().AddDate(0, 0, -1).Format("2006-01-02"),
					Reason:    "prehlada",
				}); err != nil {
					return err
				}
				if _, err := e.CreateHealthAppointment(ctx, patient, engine.CreateHealthAppointmentInput{
					DoctorID: doctor.SubjectID,
					DateTime: time.Now().AddDate(0, 0, 7).Format(time.RFC3339),
					Type:     "opšti pregled",
				}); err != nil {
					return err
				}
				if _, err := e.CreateHealthCardRequest(ctx, patient, engine.CreateHealthCardRequestInput{
					RequestType: "nova kartica",
				}); err != nil {
					return err
				}
				if _, err := e.CreatePrescription(ctx, doctor, engine.CreatePrescriptionInput{
					PatientID:  patient.SubjectID,
					Medication: "Brufen 400mg",
					Dosage:     "3x1",
					Duration:   "7 dana",
					ValidDays:  14,
				}); err != nil {
					return err
				}
				fmt.Println("seeded demo data")
				return nil
			})
		},
	}
}

func adminCmd() *cobra.Command {
	admin := &cobra.Command{Use: "admin", Short: "Operator queries against the local database"}
	admin.AddCommand(adminListCmd())
	admin.AddCommand(adminTransitionsCmd())
	return admin
}

func adminListCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List entities of one kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.Kind(args[0])
			return withEngine(func(ctx context.Context, e *engine.Engine) error {
				f := repo.ListFilters{Status: status, Limit: limit}
				switch kind {
				case domain.KindEnrollment:
					items, err := e.Repo.ListEnrollments(ctx, f)
					if err != nil {
						return err
					}
					return renderRows("Enrollments", items, func(v domain.Enrollment) table.Row {
						return table.Row{v.ID, v.ParentUserID, v.FirstName + " " + v.LastName, v.Status, v.CreatedAt}
					}, table.Row{"ID", "Parent", "Child", "Status", "Created"})
				case domain.KindAbsence:
					items, err := e.Repo.ListAbsences(ctx, f)
					if err != nil {
						return err
					}
					return renderRows("Absences", items, func(v domain.Absence) table.Row {
						return table.Row{v.ID, v.StudentUserID, v.StartDate + ".." + v.EndDate, v.Status, v.CreatedAt}
					}, table.Row{"ID", "Student", "Period", "Status", "Created"})
				case domain.KindSchoolAppointment:
					items, err := e.Repo.ListSchoolAppointments(ctx, f)
					if err != nil {
						return err
					}
					return renderRows("School appointments", items, func(v domain.SchoolAppointment) table.Row {
						return table.Row{v.ID, v.RequesterID, v.DateTime, v.Type, v.Status}
					}, table.Row{"ID", "Requester", "When", "Type", "Status"})
				case domain.KindHealthAppointment:
					items, err := e.Repo.ListHealthAppointments(ctx, f)
					if err != nil {
						return err
					}
					return renderRows("Health appointments", items, func(v domain.HealthAppointment) table.Row {
						return table.Row{v.ID, v.PatientID, v.DoctorID, v.DateTime, v.Status}
					}, table.Row{"ID", "Patient", "Doctor", "When", "Status"})
				case domain.KindHealthCardRequest:
					items, err := e.Repo.ListHealthCardRequests(ctx, f)
					if err != nil {
						return err
					}
					return renderRows("Health card requests", items, func(v domain.HealthCardRequest) table.Row {
						return table.Row{v.ID, v.PatientID, v.RequestType, v.Status, v.CreatedAt}
					}, table.Row{"ID", "Patient", "Type", "Status", "Created"})
				case domain.KindPrescription:
					items, err := e.Repo.ListPrescriptions(ctx, f)
					if err != nil {
						return err
					}
					return renderRows("Prescriptions", items, func(v domain.Prescription) table.Row {
						return table.Row{v.ID, v.PatientID, v.Medication, v.Status, v.IssuedAt}
					}, table.Row{"ID", "Patient", "Medication", "Status", "Issued"})
				default:
					return fmt.Errorf("unknown kind %q", args[0])
				}
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func adminTransitionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transitions <kind> <id>",
		Short: "Show the transition log for one entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.Kind(args[0])
			return withEngine(func(ctx context.Context, e *engine.Engine) error {
				records, err := e.Log.List(ctx, kind, args[1])
				if err != nil {
					return err
				}
				return renderRows("Transitions", records, func(v domain.TransitionRecord) table.Row {
					return table.Row{v.ID, v.FromStatus, v.ToStatus, v.ActorID, v.ActorRole, v.TS}
				}, table.Row{"#", "From", "To", "Actor", "Role", "At"})
			})
		},
	}
	return cmd
}

func renderRows[T any](title string, items []T, row func(T) table.Row, header table.Row) error {
	if viper.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(title)
	tw.AppendHeader(header)
	for _, it := range items {
		tw.AppendRow(row(it))
	}
	tw.Render()
	return nil
}
