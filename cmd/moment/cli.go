package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/moment/internal/annotation"
	"github.com/hpungsan/moment/internal/camera"
	"github.com/hpungsan/moment/internal/config"
	"github.com/hpungsan/moment/internal/errors"
	"github.com/hpungsan/moment/internal/imaging"
	"github.com/hpungsan/moment/internal/ops"
	"github.com/hpungsan/moment/internal/web"
)

// deps is shared by all commands. The logger is swapped in Before when
// --verbose is set.
type deps struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "moment",
		Usage:   "Capture, annotate and share family health moments",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Log debug output to stderr"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				d.logger = newLogger(true)
			}
			return nil
		},
		Commands: []*cli.Command{
			composeCmd(d),
			fetchCmd(d),
			listCmd(d),
			deleteCmd(d),
			filtersCmd(d),
			captionsCmd(d),
			healthCmd(d),
			exportCmd(d),
			importCmd(d),
			purgeCmd(d),
			serveCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// composeCmd creates the compose command.
func composeCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "compose",
		Usage: "Compose and publish a post (gallery image via --image, '-' for stdin; camera capture otherwise)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "Gallery image path, or - to read stdin"},
			&cli.StringFlag{Name: "facing", Value: string(camera.FacingBack), Usage: "Camera facing: user|environment"},
			&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Value: imaging.NormalFilter, Usage: "Filter name (see 'moment filters')"},
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Text overlay"},
			&cli.StringFlag{Name: "caption", Aliases: []string{"c"}, Usage: "Post caption"},
			&cli.IntFlag{Name: "caption-index", Usage: "Use the AI caption suggestion at this index"},
			&cli.BoolFlag{Name: "location", Usage: "Add the location chip"},
			&cli.BoolFlag{Name: "weather", Usage: "Add the weather chip"},
			&cli.BoolFlag{Name: "time", Usage: "Add the current time chip"},
			&cli.StringFlag{Name: "health", Usage: "Health record as category:index (e.g., challenge:0)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ComposeInput{
				Facing:   camera.Facing(c.String("facing")),
				Filter:   c.String("filter"),
				Text:     c.String("text"),
				Caption:  c.String("caption"),
				Location: c.Bool("location"),
				Weather:  c.Bool("weather"),
				Time:     c.Bool("time"),
			}

			switch path := c.String("image"); path {
			case "":
			case "-":
				if !stdinHasData() {
					return outputError(errors.NewInvalidRequest("--image - expects image data piped via stdin"))
				}
				data, err := readStdin(ops.MaxImageFileBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				if len(data) == 0 {
					return outputError(errors.NewNoImageSelected())
				}
				input.Image = data
			default:
				data, err := ops.ReadImage(path, d.cfg)
				if err != nil {
					return outputError(err)
				}
				input.Image = data
			}

			if c.IsSet("caption-index") {
				i := c.Int("caption-index")
				input.CaptionIndex = &i
			}
			if s := c.String("health"); s != "" {
				h, err := parseHealth(s)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.Health = h
			}

			output, err := ops.Compose(c.Context, d.db, d.cfg, input, ops.WithLogger(d.logger))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a post by ID",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted posts"},
			&cli.BoolFlag{Name: "with-image", Usage: "Include the base64 image in the output"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write the image to this .jpg path instead"},
		},
		Action: func(c *cli.Context) error {
			id := c.Args().First()

			if out := c.String("out"); out != "" {
				output, err := ops.SaveImage(c.Context, d.db, d.cfg, ops.SaveImageInput{ID: id, Path: out})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(output)
			}

			includeImage := c.Bool("with-image")
			output, err := ops.Fetch(c.Context, d.db, ops.FetchInput{
				ID:             id,
				IncludeDeleted: c.Bool("include-deleted"),
				IncludeImage:   &includeImage,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List posts, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "author", Aliases: []string{"a"}, Usage: "Filter by author"},
			&cli.StringFlag{Name: "date", Aliases: []string{"d"}, Usage: "Filter by day (YYYY-MM-DD)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted posts"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, d.db, ops.ListInput{
				Author:         c.String("author"),
				Date:           c.String("date"),
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a post",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, d.db, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// filtersCmd creates the filters command.
func filtersCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "filters",
		Usage: "List available filters",
		Action: func(c *cli.Context) error {
			cat, err := ops.LoadCatalog(d.cfg)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(cat.Filters)
		},
	}
}

// captionsCmd creates the captions command.
func captionsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "captions",
		Usage: "List AI caption suggestions",
		Action: func(c *cli.Context) error {
			cat, err := ops.LoadCatalog(d.cfg)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(cat.Captions)
		},
	}
}

// healthCmd creates the health command.
func healthCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "health",
		Usage:     "List health records by category",
		ArgsUsage: "[activity|mood|challenge]",
		Action: func(c *cli.Context) error {
			cat, err := ops.LoadCatalog(d.cfg)
			if err != nil {
				return outputError(err)
			}
			if c.NArg() == 0 {
				return outputJSON(cat.Health)
			}
			category, err := annotation.ParseCategory(c.Args().First())
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			return outputJSON(cat.Records(category))
		},
	}
}

// exportCmd creates the export command.
func exportCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export posts to a JSONL backup",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output path (default: ~/.moment/exports/<author>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "author", Aliases: []string{"a"}, Usage: "Filter by author"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted posts"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, d.db, d.cfg, ops.ExportInput{
				Path:           c.String("path"),
				Author:         c.String("author"),
				IncludeDeleted: c.Bool("include-deleted"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import posts from a JSONL backup",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(ops.ImportModeError), Usage: "Collision mode: error|skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, d.db, d.cfg, ops.ImportInput{
				Path: c.Args().First(),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete soft-deleted posts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge if deleted more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			var input ops.PurgeInput
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, d.db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the feed viewer web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(d.db, d.cfg, Version, c.String("bind"), c.Int("port"), d.logger)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(srv, d.logger); err != nil && !stderrors.Is(err, context.Canceled) {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var mErr *errors.MomentError
	if stderrors.As(err, &mErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return data, nil
}

// parseHealth parses "category:index".
func parseHealth(s string) (*ops.ComposeHealth, error) {
	category, idx, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("health must be category:index, e.g., challenge:0")
	}
	if _, err := annotation.ParseCategory(strings.TrimSpace(category)); err != nil {
		return nil, err
	}
	i, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil || i < 0 {
		return nil, fmt.Errorf("health index must be a non-negative integer")
	}
	return &ops.ComposeHealth{Category: strings.TrimSpace(category), Index: i}, nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
