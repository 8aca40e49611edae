package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dmitrijs2005/infrakit/internal/database"
	"github.com/dmitrijs2005/infrakit/internal/netx"
	"github.com/dmitrijs2005/infrakit/internal/settings"
	"github.com/dmitrijs2005/infrakit/internal/storage"
)

type command func(ctx context.Context, env *runEnv) error

func (a *App) register(app *kingpin.Application) map[string]command {
	cmds := make(map[string]command)

	// settings
	showSettings := app.Command("settings", "Print the resolved settings with secrets masked.")
	withOrigins := showSettings.Flag("origins", "Show where each value came from.").Bool()
	cmds[showSettings.FullCommand()] = func(ctx context.Context, env *runEnv) error {
		return a.printSettings(env, *withOrigins)
	}

	// upload
	upload := app.Command("upload", "Upload a local file.")
	upPath := upload.Arg("path", "Local file.").Required().String()
	upKey := upload.Arg("key", "Object key; generated under --prefix when omitted.").String()
	upPrefix := upload.Flag("prefix", "Prefix for generated keys.").Default("uploads").String()
	upType := upload.Flag("content-type", "Content-Type; guessed from the extension by default.").String()
	upMeta := upload.Flag("meta", "User metadata KEY=VALUE (repeatable).").StringMap()
	cmds[upload.FullCommand()] = func(ctx context.Context, env *runEnv) error {
		st, err := a.store(ctx, env)
		if err != nil {
			return err
		}
		key := *upKey
		if key == "" {
			key = st.NewObjectKey(*upPrefix) + "/" + filepath.Base(*upPath)
		}
		var opts []storage.UploadOption
		if *upType != "" {
			opts = append(opts, storage.WithContentType(*upType))
		}
		if len(*upMeta) > 0 {
			opts = append(opts, storage.WithMetadata(*upMeta))
		}
		if err := st.Upload(ctx, *upPath, key, opts...); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "uploaded s3://%s/%s\n", st.Bucket(), key)
		return nil
	}

	// download
	download := app.Command("download", "Download an object to a local file.")
	dlKey := download.Arg("key", "Object key.").Required().String()
	dlPath := download.Arg("path", "Local destination; parent directories are created.").Required().String()
	cmds[download.FullCommand()] = func(ctx context.Context, env *runEnv) error {
		st, err := a.store(ctx, env)
		if err != nil {
			return err
		}
		if err := st.Download(ctx, *dlKey, *dlPath); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "downloaded %s to %s\n", *dlKey, *dlPath)
		return nil
	}

	// ls
	ls := app.Command("ls", "List objects under a prefix.")
	lsPrefix := ls.Arg("prefix", "Key prefix.").String()
	lsLong := ls.Flag("long", "Show size, modification time and storage class.").Short('l').Bool()
	cmds[ls.FullCommand()] = func(ctx context.Context, env *runEnv) error {
		st, err := a.store(ctx, env)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		for info, err := range st.ListObjects(ctx, *lsPrefix) {
			if err != nil {
				_ = tw.Flush()
				return err
			}
			if *lsLong {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", info.Size, info.LastModified.UTC().Format(time.RFC3339), info.StorageClass, info.Key)
			} else {
				fmt.Fprintln(tw, info.Key)
			}
		}
		return tw.Flush()
	}

	// exists
	exists := app.Command("exists", "Report whether an object exists.")
	exKey := exists.Arg("key", "Object key.").Required().String()
	cmds[exists.FullCommand()] = func(ctx context.Context, env *runEnv) error {
		st, err := a.store(ctx, env)
		if err != nil {
			return err
		}
		ok, err := st.ObjectExists(ctx, *exKey)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, ok)
		return nil
	}

	// stat
	stat := app.Command("stat", "Show an object's size, content type and user metadata.")
	stKey := stat.Arg("key", "Object key.").Required().String()
	cmds[stat.FullCommand()] = func(ctx context.Context, env *runEnv) error {
		st, err := a.store(ctx, env)
		if err != nil {
			return err
		}
		obj, err := st.GetObject(ctx, *stKey)
		if err != nil {
			return err
		}
		return a.printObject(obj)
	}

	// presign
	presign := app.Command("presign", "Print a presigned URL.")
	psKey := presign.Arg("key", "Object key.").Required().String()
	psMethod := presign.Flag("method", "HTTP method the URL grants.").Default(http.MethodGet).Enum(http.MethodGet, http.MethodPut, http.MethodDelete)
	psExpires := presign.Flag("expires", "URL lifetime, at most 168h.").Default("15m").Duration()
	psUpload := presign.Flag("upload", "PUT this local file through the presigned URL instead of printing it.").ExistingFile()
	cmds[presign.FullCommand()] = func(ctx context.Context, env *runEnv) error {
		st, err := a.store(ctx, env)
		if err != nil {
			return err
		}
		method := *psMethod
		if *psUpload != "" {
			method = http.MethodPut
		}
		u, err := st.PresignedURLFor(ctx, method, *psKey, *psExpires)
		if err != nil {
			return err
		}
		if *psUpload == "" {
			fmt.Fprintln(a.out, u)
			return nil
		}
		return a.putPresigned(ctx, u, *psUpload, st.Bucket(), *psKey)
	}

	// rm
	rm := app.Command("rm", "Delete objects.")
	rmKeys := rm.Arg("keys", "Object keys.").Required().Strings()
	cmds[rm.FullCommand()] = func(ctx context.Context, env *runEnv) error {
		st, err := a.store(ctx, env)
		if err != nil {
			return err
		}
		for _, k := range *rmKeys {
			if err := st.Delete(ctx, k); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "deleted %s\n", k)
		}
		return nil
	}

	// cp
	cp := app.Command("cp", "Copy an object server-side.")
	cpSrc := cp.Arg("src", "Source key.").Required().String()
	cpDst := cp.Arg("dst", "Destination key.").Required().String()
	cpBucket := cp.Flag("source-bucket", "Copy from another bucket.").String()
	cmds[cp.FullCommand()] = func(ctx context.Context, env *runEnv) error {
		st, err := a.store(ctx, env)
		if err != nil {
			return err
		}
		var opts []storage.CopyOption
		if *cpBucket != "" {
			opts = append(opts, storage.WithSourceBucket(*cpBucket))
		}
		if err := st.Copy(ctx, *cpSrc, *cpDst, opts...); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "copied %s to %s\n", *cpSrc, *cpDst)
		return nil
	}

	// db-ping
	dbPing := app.Command("db-ping", "Open the configured database and ping it.")
	dbTimeout := dbPing.Flag("timeout", "Ping timeout.").Default("5s").Duration()
	cmds[dbPing.FullCommand()] = func(ctx context.Context, env *runEnv) error {
		ctx, cancel := context.WithTimeout(ctx, *dbTimeout)
		defer cancel()

		db, err := a.openDB(ctx, env.settings)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(a.out, "database reachable: %s\n", database.Redact(database.Normalize(env.settings.DatabaseURL)))
		return nil
	}

	return cmds
}

func (a *App) putPresigned(ctx context.Context, url, path, bucket, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if err := netx.PutPresigned(ctx, a.httpClient, url, f, fi.Size(), ""); err != nil {
		return fmt.Errorf("presigned upload of %s: %w", key, err)
	}
	fmt.Fprintf(a.out, "uploaded s3://%s/%s via presigned URL\n", bucket, key)
	return nil
}

func (a *App) printObject(obj storage.Object) error {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "key\t%s\n", obj.Key)
	fmt.Fprintf(tw, "size\t%d\n", obj.Size)
	fmt.Fprintf(tw, "content-type\t%s\n", obj.ContentType)
	fmt.Fprintf(tw, "etag\t%s\n", obj.ETag)
	if !obj.LastModified.IsZero() {
		fmt.Fprintf(tw, "modified\t%s\n", obj.LastModified.UTC().Format(time.RFC3339))
	}

	names := make([]string, 0, len(obj.Metadata))
	for k := range obj.Metadata {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fmt.Fprintf(tw, "meta.%s\t%s\n", k, obj.Metadata[k])
	}
	return tw.Flush()
}

func (a *App) printSettings(env *runEnv, withOrigins bool) error {
	red := env.settings.Redacted()

	keys := make([]string, 0, len(red))
	for k := range red {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		if !withOrigins {
			fmt.Fprintf(tw, "%s\t%s\n", k, red[k])
			continue
		}
		origin := env.origins[k]
		if origin == "" {
			origin = "default"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k, red[k], origin)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if !env.settings.HasStorage() {
		fmt.Fprintf(a.errOut, "note: %s is not set; storage commands will fail (%s)\n",
			settings.KeyStorageBucket, settings.Suggest(settings.KeyStorageBucket))
	}
	return nil
}
