package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/hupe1980/elkan/blobstore"
	"github.com/hupe1980/elkan/blobstore/minio"
	"github.com/hupe1980/elkan/blobstore/s3"
	"github.com/hupe1980/elkan/internal/cache"
	"github.com/hupe1980/elkan/internal/config"
	"github.com/hupe1980/elkan/internal/resource"
)

var (
	memStoresMu sync.Mutex
	memStores   = map[string]*blobstore.MemoryStore{}
)

// memStore returns the process-wide in-memory store registered under name.
func memStore(name string) *blobstore.MemoryStore {
	memStoresMu.Lock()
	defer memStoresMu.Unlock()

	s, ok := memStores[name]
	if !ok {
		s = blobstore.NewMemoryStore()
		memStores[name] = s
	}
	return s
}

// storeLocation is a parsed store URL.
type storeLocation struct {
	scheme   string
	endpoint string // minio only
	bucket   string // s3 bucket, minio bucket or mem store name
	prefix   string
	path     string // file only
}

func parseStoreURL(raw string) (storeLocation, error) {
	if !strings.Contains(raw, "://") {
		return storeLocation{scheme: "file", path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return storeLocation{}, fmt.Errorf("parse store url %q: %w", raw, err)
	}

	trimmed := strings.Trim(u.Path, "/")
	switch u.Scheme {
	case "file":
		p := u.Host + u.Path
		if p == "" {
			return storeLocation{}, fmt.Errorf("store url %q: missing directory", raw)
		}
		return storeLocation{scheme: "file", path: p}, nil
	case "mem":
		return storeLocation{scheme: "mem", bucket: u.Host}, nil
	case "s3":
		if u.Host == "" {
			return storeLocation{}, fmt.Errorf("store url %q: missing bucket", raw)
		}
		return storeLocation{scheme: "s3", bucket: u.Host, prefix: withSlash(trimmed)}, nil
	case "minio":
		bucket, prefix, _ := strings.Cut(trimmed, "/")
		if u.Host == "" || bucket == "" {
			return storeLocation{}, fmt.Errorf("store url %q: want minio://<endpoint>/<bucket>[/<prefix>]", raw)
		}
		return storeLocation{scheme: "minio", endpoint: u.Host, bucket: bucket, prefix: withSlash(prefix)}, nil
	default:
		return storeLocation{}, fmt.Errorf("store url %q: unsupported scheme %q", raw, u.Scheme)
	}
}

func withSlash(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}

// openStore builds the blob store described by cfg. Remote stores are
// wrapped in a block cache when cfg.CacheBytes > 0.
func openStore(ctx context.Context, cfg config.StoreConfig, rc *resource.Controller) (blobstore.BlobStore, error) {
	loc, err := parseStoreURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	var store blobstore.BlobStore
	switch loc.scheme {
	case "file":
		return blobstore.NewLocalStore(loc.path), nil
	case "mem":
		return memStore(loc.bucket), nil
	case "s3":
		opts := []s3.Option{s3.WithPrefix(loc.prefix)}
		if cfg.S3.Region != "" {
			opts = append(opts, s3.WithRegion(cfg.S3.Region))
		}
		if cfg.S3.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(cfg.S3.Endpoint))
		}
		if cfg.S3.UsePathStyle {
			opts = append(opts, s3.WithPathStyle(true))
		}
		s3Store, err := s3.New(ctx, loc.bucket, opts...)
		if err != nil {
			return nil, err
		}
		store = s3Store

		if cfg.CommitTable != "" {
			var loadOpts []func(*awsconfig.LoadOptions) error
			if cfg.S3.Region != "" {
				loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3.Region))
			}
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
			if err != nil {
				return nil, fmt.Errorf("load aws config: %w", err)
			}
			store = s3.NewDDBCommitStore(s3Store, dynamodb.NewFromConfig(awsCfg), cfg.CommitTable, s3Store.URI())
		}
	case "minio":
		client, err := minio.Dial(minio.Config{
			Endpoint:  loc.endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Region:    cfg.MinIO.Region,
			Secure:    cfg.MinIO.Secure,
		})
		if err != nil {
			return nil, err
		}
		mstore := minio.NewStore(client, loc.bucket, loc.prefix)
		if err := mstore.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		store = mstore
	}

	if cfg.CacheBytes > 0 {
		store = blobstore.NewCachingStore(store, cache.NewShardedLRUBlockCache(cfg.CacheBytes, rc), cfg.CacheBlockSize)
	}
	return store, nil
}
