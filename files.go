package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/papertablet/papercloud-go/internal/cloud"
)

// putWorkers bounds parallel uploads when put is given multiple files.
// Each individual upload remains a strictly sequential request chain.
const putWorkers = 4

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List documents and folders",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote-path|doc-id> [local-path]",
		Short: "Download a document as PDF",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runGet,
	}
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-pdf>...",
		Short: "Upload PDFs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPut,
	}

	cmd.Flags().StringP("dest", "d", "/", "destination remote folder")

	return cmd
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a remote folder (recursive)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}
}

// splitParentAndName splits a remote path into parent path and name.
// For "/foo/bar/baz" returns ("/foo/bar", "baz").
func splitParentAndName(path string) (string, string) {
	clean := strings.Trim(cloud.CleanPath(path), "/")

	idx := strings.LastIndex(clean, "/")
	if idx < 0 {
		return "/", clean
	}

	return "/" + clean[:idx], clean[idx+1:]
}

// lsJSONItem is the JSON output schema for a single node in ls output.
type lsJSONItem struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Modified string `json:"modified,omitempty"`
	ID       string `json:"id"`
}

func runLs(cmd *cobra.Command, args []string) error {
	remotePath := "/"
	if len(args) > 0 {
		remotePath = args[0]
	}

	ctx := cmd.Context()

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	nodes, err := app.service.Nodes(ctx)
	if err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}

	paths, err := cloud.BuildFolderPaths(nodes)
	if err != nil {
		return err
	}

	clean := cloud.CleanPath(remotePath)

	parentID := ""

	if clean != "/" {
		parentID = idForPath(paths, clean)
		if parentID == "" {
			return fmt.Errorf("%w: folder %s", cloud.ErrNotFound, clean)
		}
	}

	children := make([]cloud.Node, 0)

	for i := range nodes {
		if nodes[i].ParentID == parentID {
			children = append(children, nodes[i])
		}
	}

	if flagJSON {
		return printNodesJSON(children)
	}

	printNodesTable(children)

	return nil
}

// idForPath returns the folder id mapped to path, or "".
func idForPath(paths map[string]string, path string) string {
	for id, p := range paths {
		if p == path {
			return id
		}
	}

	return ""
}

func printNodesJSON(nodes []cloud.Node) error {
	out := make([]lsJSONItem, 0, len(nodes))
	for i := range nodes {
		item := lsJSONItem{
			Name: nodes[i].Name,
			Kind: nodes[i].Kind,
			ID:   nodes[i].ID,
		}

		if !nodes[i].Modified.IsZero() {
			item.Modified = nodes[i].Modified.UTC().Format("2006-01-02T15:04:05Z")
		}

		out = append(out, item)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}

func printNodesTable(nodes []cloud.Node) {
	// Sort: folders first, then alphabetical.
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].IsFolder() != nodes[j].IsFolder() {
			return nodes[i].IsFolder()
		}

		return nodes[i].Name < nodes[j].Name
	})

	headers := []string{"NAME", "KIND", "MODIFIED"}
	rows := make([][]string, 0, len(nodes))

	for i := range nodes {
		name := nodes[i].Name
		if nodes[i].IsFolder() {
			name += "/"
		}

		modified := ""
		if !nodes[i].Modified.IsZero() {
			modified = formatTime(nodes[i].Modified)
		}

		rows = append(rows, []string{name, nodes[i].Kind, modified})
	}

	printTable(os.Stdout, headers, rows)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	documentID, name, err := resolveDocument(cmd, app, args[0])
	if err != nil {
		return err
	}

	localPath := name + ".pdf"
	if len(args) > 1 {
		localPath = args[1]
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating %q: %w", localPath, err)
	}

	n, dlErr := app.service.Download(ctx, documentID, f)

	if closeErr := f.Close(); dlErr == nil && closeErr != nil {
		dlErr = fmt.Errorf("closing %q: %w", localPath, closeErr)
	}

	if dlErr != nil {
		os.Remove(localPath)
		return fmt.Errorf("downloading %q: %w", args[0], dlErr)
	}

	statusf("Downloaded %s (%s)\n", localPath, formatSize(n))

	return nil
}

// resolveDocument turns a CLI argument into a document id and display
// name. A bare UUID is used directly; anything else is treated as a
// remote path and matched against the folder's document listing.
func resolveDocument(cmd *cobra.Command, app *appContext, arg string) (string, string, error) {
	if _, err := uuid.Parse(arg); err == nil {
		return arg, arg, nil
	}

	parent, name := splitParentAndName(arg)

	docsIn, err := app.service.Documents(cmd.Context(), parent)
	if err != nil {
		return "", "", fmt.Errorf("listing %q: %w", parent, err)
	}

	for i := range docsIn {
		if docsIn[i].Name == name {
			return docsIn[i].ID, docsIn[i].Name, nil
		}
	}

	return "", "", fmt.Errorf("%w: document %s", cloud.ErrNotFound, cloud.CleanPath(arg))
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	dest, err := cmd.Flags().GetString("dest")
	if err != nil {
		return err
	}

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	// Provision the destination once so parallel uploads cannot race on
	// folder creation.
	if _, err := app.service.CreateFolder(ctx, dest); err != nil {
		return fmt.Errorf("creating destination %q: %w", dest, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(putWorkers)

	for _, localPath := range args {
		g.Go(func() error {
			id, upErr := uploadFile(gctx, app, localPath, dest)
			if upErr != nil {
				return fmt.Errorf("uploading %q: %w", localPath, upErr)
			}

			statusf("Uploaded %s -> %s (%s)\n", localPath, cloud.CleanPath(dest), id)

			return nil
		})
	}

	return g.Wait()
}

// uploadFile uploads one local PDF, naming the document after the file's
// base name without the .pdf extension.
func uploadFile(ctx context.Context, app *appContext, localPath, dest string) (string, error) {
	fi, err := os.Stat(localPath)
	if err != nil {
		return "", fmt.Errorf("stating local file: %w", err)
	}

	if fi.IsDir() {
		return "", fmt.Errorf("%q is a directory, not a file", localPath)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening local file: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(localPath), filepath.Ext(localPath))

	return app.service.UploadPDF(ctx, f, fi.Size(), name, dest)
}

func runMkdir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newAppContext(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := app.service.CreateFolder(ctx, args[0])
	if err != nil {
		return fmt.Errorf("creating folder %q: %w", args[0], err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(map[string]string{"created": cloud.CleanPath(args[0]), "id": id})
	}

	statusf("Created %s\n", cloud.CleanPath(args[0]))

	return nil
}

