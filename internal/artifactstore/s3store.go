// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of tsiemene-runtime.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package artifactstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3StoreConfig is the `{"kind":"s3", ...}` artifactstore config.
// Grounded on the teacher's parquet.S3TargetConfig/S3Target
// (pkg/archive/parquet/target.go, reader.go), generalized here from
// parquet metric exports to opaque model-artifact blobs.
type S3StoreConfig struct {
	Endpoint     string `json:"endpoint"`
	Bucket       string `json:"bucket"`
	Prefix       string `json:"prefix"`
	AccessKey    string `json:"accessKey"`
	SecretKey    string `json:"secretKey"`
	Region       string `json:"region"`
	UsePathStyle bool   `json:"usePathStyle"`
}

// S3Store persists artifacts as objects in an S3-compatible bucket.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func (st *S3Store) Init(rawConfig json.RawMessage) error {
	var cfg S3StoreConfig
	if err := json.Unmarshal(rawConfig, &cfg); err != nil {
		return fmt.Errorf("artifactstore: s3: %w", err)
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("artifactstore: s3: empty bucket name")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return fmt.Errorf("artifactstore: s3: load AWS config: %w", err)
	}

	opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	st.client = s3.NewFromConfig(awsCfg, opts)
	st.bucket = cfg.Bucket
	st.prefix = cfg.Prefix
	return nil
}

func (st *S3Store) key(id string) string {
	if st.prefix == "" {
		return id + ".artifact"
	}
	return st.prefix + "/" + id + ".artifact"
}

func (st *S3Store) Exists(id string) bool {
	_, err := st.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(st.key(id)),
	})
	return err == nil
}

func (st *S3Store) Load(id string) ([]byte, error) {
	out, err := st.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(st.bucket),
		Key:    aws.String(st.key(id)),
	})
	if err != nil {
		return nil, fmt.Errorf("artifactstore: s3: get object %q: %w", id, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("artifactstore: s3: read object %q: %w", id, err)
	}
	return data, nil
}

func (st *S3Store) Store(id string, data []byte) error {
	_, err := st.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(st.bucket),
		Key:         aws.String(st.key(id)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("artifactstore: s3: put object %q: %w", id, err)
	}
	return nil
}
