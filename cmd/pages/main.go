// Command pages inspects published pages and can serve them read-only.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Noel-Mtf/yesshare/handlers"
	"github.com/Noel-Mtf/yesshare/internal/comments"
	"github.com/Noel-Mtf/yesshare/internal/config"
	"github.com/Noel-Mtf/yesshare/internal/database"
	"github.com/Noel-Mtf/yesshare/internal/pages"
	"github.com/Noel-Mtf/yesshare/internal/render"
	"github.com/Noel-Mtf/yesshare/internal/slug"
	"github.com/Noel-Mtf/yesshare/internal/store"
	"github.com/Noel-Mtf/yesshare/internal/users"
	"github.com/Noel-Mtf/yesshare/internal/viewer"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	mongoURI   string
	dbName     string
	jsonOutput bool
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:   "pages",
	Short: "Inspect and serve published yesshare pages",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	},
	SilenceUsage: true,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank pages against a query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, done, err := openTree(cmd.Context())
		if err != nil {
			return err
		}
		defer done()
		res, err := pages.NewService(pages.NewTreeRepository(tree)).Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(res)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tADDRESS\tTITLE")
		for _, r := range res {
			fmt.Fprintf(w, "%d\t%s\t%s\n", r.Score, slug.Address(r.Page.Slug), r.Page.Title)
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <slug|address>",
	Short: "Print one page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, done, err := openTree(cmd.Context())
		if err != nil {
			return err
		}
		defer done()
		s := args[0]
		if parsed, ok := slug.ParseAddress(s); ok {
			s = parsed
		}
		p, err := pages.NewService(pages.NewTreeRepository(tree)).Get(cmd.Context(), s)
		if err != nil {
			return err
		}
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(p)
		}
		fmt.Printf("%s  %s\nowner: %s  kind: %s\n\n%s\n", slug.Address(p.Slug), p.Title, p.OwnerUID, p.Kind(), p.Content)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search, pages and frames without sign-in",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		tree, done, err := openTree(ctx)
		if err != nil {
			return err
		}
		defer done()

		pageSvc := pages.NewService(pages.NewTreeRepository(tree))
		userSvc := users.NewService(users.NewTreeUserRepository(tree), pageSvc)
		blobs := render.NewMemoryBlobs()
		limits := config.LimitsConfig{
			CommentMax:        comments.MaxFormLength,
			RelayedCommentMax: comments.MaxRelayedLength,
			SlugDebounce:      350 * time.Millisecond,
		}
		reg := viewer.NewRegistry(viewer.Options{Blobs: blobs, Profiles: userSvc, Debounce: limits.SlugDebounce})
		go reg.Run(ctx, time.Minute)

		r := gin.New()
		r.Use(gin.Recovery())
		handlers.RegisterRoutes(r, handlers.Deps{
			Limits:   limits,
			Viewers:  reg,
			Blobs:    blobs,
			Pages:    pageSvc,
			Slugs:    slug.NewChecker(tree),
			Users:    userSvc,
			Comments: comments.NewService(tree),
		})

		srv := &http.Server{Addr: listenAddr, Handler: r}
		go func() {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
			_ = reg.Close(sctx)
		}()
		logger.Infof("read-only pages server on %s", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

// openTree connects to Mongo when a URI is given and otherwise returns an
// empty in-memory tree.
func openTree(ctx context.Context) (store.Tree, func(), error) {
	if mongoURI == "" {
		logger.Warn("no --mongo given, using an empty in-memory tree")
		return store.NewMemoryTree(), func() {}, nil
	}
	client, err := database.ConnectMongoWithRetry(ctx, mongoURI, 10*time.Second, 3)
	if err != nil {
		return nil, nil, err
	}
	done := func() { _ = client.Disconnect(context.Background()) }
	t, err := store.NewMongoTree(ctx, client.Database(dbName).Collection("tree"))
	if err != nil {
		done()
		return nil, nil, err
	}
	return t, done, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&mongoURI, "mongo", os.Getenv("MONGODB_URI"), "MongoDB connection URI")
	rootCmd.PersistentFlags().StringVar(&dbName, "db", "yesshare", "MongoDB database name")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":5010", "Listen address")
	rootCmd.AddCommand(searchCmd, showCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
