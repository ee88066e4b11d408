package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/keithlinneman/newsfront/internal/gateway"
	"github.com/keithlinneman/newsfront/internal/log"
	"github.com/keithlinneman/newsfront/internal/sitemap"
	v "github.com/keithlinneman/newsfront/internal/version"
	"github.com/keithlinneman/newsfront/internal/xerrors"
)

type sitemapFlags struct {
	news     bool
	out      string
	s3Bucket string
	s3Key    string
	timeout  time.Duration
}

// publisherFn builds the S3 uploader; tests replace it.
var publisherFn = func(ctx context.Context, bucket string, L log.Logger) (publisher, error) {
	return sitemap.NewS3Publisher(ctx, sitemap.PublisherOptions{Bucket: bucket, Logger: L})
}

type publisher interface {
	Publish(ctx context.Context, name string, doc []byte) (string, error)
}

func getSitemapCmd() *cobra.Command {
	var f sitemapFlags
	cmd := &cobra.Command{
		Use:   "sitemap",
		Short: "Build the sitemap (or news sitemap) from the CMS",
		Long: `Build the standard or news sitemap through the content gateway and write it
to stdout, a file, or an S3 object. The site variables are validated first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSitemap(cmd, f)
		},
	}
	cmd.Flags().BoolVar(&f.news, "news", false, "build the news sitemap (last 48h) instead of the full one")
	cmd.Flags().StringVar(&f.out, "out", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&f.s3Bucket, "s3-bucket", "", "upload to this bucket")
	cmd.Flags().StringVar(&f.s3Key, "s3-key", "", "object key for the upload (default sitemap.xml or news-sitemap.xml)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 2*time.Minute, "overall time limit")
	return cmd
}

func runSitemap(cmd *cobra.Command, f sitemapFlags) error {
	L, err := newLogger(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	res, site := resolveEnv(ctx, L, true)
	if _, err := res.ValidateOrError(); err != nil {
		return err
	}

	gw := gateway.New(gateway.Options{
		Endpoint:   site.Endpoint,
		Production: site.Production(),
		UserAgent:  v.Get().UserAgent(),
		Logger:     L,
	})
	if err := gw.Init(ctx); err != nil {
		return err
	}

	b := &sitemap.Builder{
		Source:          gw,
		SiteURL:         site.URL,
		PublicationName: site.Name,
		Language:        site.NewsLanguage,
	}
	name := "sitemap.xml"
	build := b.Build
	if f.news {
		name = "news-sitemap.xml"
		build = b.BuildNews
	}
	doc, stats, err := build(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case f.s3Bucket != "":
		if f.s3Key != "" {
			name = f.s3Key
		}
		pub, err := publisherFn(ctx, f.s3Bucket, L)
		if err != nil {
			return err
		}
		key, err := pub.Publish(ctx, name, doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "uploaded s3://%s/%s\n", f.s3Bucket, key)
	case f.out != "":
		if err := os.WriteFile(f.out, doc, 0o644); err != nil {
			return xerrors.Wrapf(err, "write %s", f.out)
		}
		fmt.Fprintf(out, "wrote %s\n", f.out)
	default:
		_, err := out.Write(doc)
		return err
	}

	fmt.Fprintf(out, "%s urls (%s posts, %s categories), %s\n",
		humanize.Comma(int64(stats.URLs)),
		humanize.Comma(int64(stats.Posts)),
		humanize.Comma(int64(stats.Categories)),
		humanize.Bytes(uint64(len(doc))),
	)
	return nil
}
