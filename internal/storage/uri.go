package storage

import (
	"fmt"
	"strings"
)

// Location is a parsed sink URI.
type Location struct {
	// Scheme is "file", "s3", "gs", "wasbs", "kafka" or "postgres".
	Scheme string

	// Bucket is the bucket, container, or broker list.
	Bucket string

	// Key is the object prefix, local path, or topic.
	Key string

	// Raw is the URI as given.
	Raw string
}

// ParseLocation parses a sink URI. A value without a scheme is a local path.
//
//	out/events.csv                   -> file, key "out/events.csv"
//	s3://bucket/exports              -> s3, bucket "bucket", key "exports"
//	wasbs://container@account/prefix -> wasbs, bucket "container", key "prefix"
//	kafka://b1:9092,b2:9092/topic    -> kafka, bucket "b1:9092,b2:9092", key "topic"
//	postgres://user@host/db          -> postgres, the DSN is Raw
func ParseLocation(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("empty output location")
	}

	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return Location{Scheme: "file", Key: uri, Raw: uri}, nil
	}

	loc := Location{Scheme: strings.ToLower(scheme), Raw: uri}
	switch loc.Scheme {
	case "file":
		loc.Key = rest
		if loc.Key == "" {
			return Location{}, fmt.Errorf("file location has no path: %s", uri)
		}
	case "s3", "gs", "wasbs", "kafka":
		loc.Bucket, loc.Key, _ = strings.Cut(rest, "/")
		loc.Key = strings.Trim(loc.Key, "/")
		if loc.Scheme == "wasbs" {
			loc.Bucket, _, _ = strings.Cut(loc.Bucket, "@")
		}
		if loc.Bucket == "" {
			return Location{}, fmt.Errorf("%s location has no bucket: %s", loc.Scheme, uri)
		}
		if loc.Scheme == "kafka" && loc.Key == "" {
			return Location{}, fmt.Errorf("kafka location has no topic: %s", uri)
		}
	case "postgres", "postgresql":
		loc.Scheme = "postgres"
	default:
		return Location{}, fmt.Errorf("unsupported output scheme: %s", scheme)
	}
	return loc, nil
}

// ObjectKey joins a location prefix and a relative key.
func ObjectKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimPrefix(key, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}
