/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

// Package storage is the narrow object-storage facet the control plane is
// allowed to use: presign, head, copy, delete and list. Logical storage
// references ("default", replica names) resolve to endpoint plus bucket
// through a secret file so no other package constructs storage URLs.
package storage

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	pkgerrors "github.com/pkg/errors"

	btrixerrors "github.com/webrecorder/btrix-operator/pkg/errors"
	utilsjson "github.com/webrecorder/btrix-operator/pkg/utils/json"
)

// StorageRef is one logical storage target from the storages secret file.
type StorageRef struct {
	Name            string `json:"name"`
	Endpoint        string `json:"endpoint"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	AccessKey       string `json:"access_key"`
	SecretKey       string `json:"secret_key"`
	AccessEndpoint  string `json:"access_endpoint,omitempty"`
	IsDefaultPrimary bool  `json:"is_default_primary,omitempty"`
	IsDefaultReplica bool  `json:"is_default_replica,omitempty"`
}

// ObjectInfo is the result of a head call.
type ObjectInfo struct {
	Size int64
	ETag string
}

// Client is the facet interface consumed by the operator and the background
// jobs.
type Client interface {
	Presign(ctx context.Context, storageName, key string, duration time.Duration) (string, error)
	Head(ctx context.Context, storageName, key string) (*ObjectInfo, error)
	Copy(ctx context.Context, srcStorage, srcKey, dstStorage, dstKey string) error
	Delete(ctx context.Context, storageName, key string) error
	List(ctx context.Context, storageName, prefix string, fn func(key string, size int64) error) error
	DefaultReplicas() []string
}

type client struct {
	refs    map[string]*StorageRef
	clients map[string]*s3.Client
}

// NewClient loads storage references from the secret file and builds one S3
// client per distinct endpoint.
func NewClient(ctx context.Context, secretPath string) (Client, error) {
	data, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read storages secret")
	}
	var refs []*StorageRef
	// strict decode so a typoed field in the secret fails startup instead of
	// silently dropping credentials
	if err = utilsjson.UnmarshalWithCheck(data, &refs); err != nil {
		return nil, pkgerrors.Wrap(err, "parse storages secret")
	}
	return newClientWithRefs(ctx, refs)
}

func newClientWithRefs(ctx context.Context, refs []*StorageRef) (Client, error) {
	c := &client{
		refs:    make(map[string]*StorageRef, len(refs)),
		clients: make(map[string]*s3.Client, len(refs)),
	}
	for _, ref := range refs {
		cfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(ref.Region),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(ref.AccessKey, ref.SecretKey, "")),
		)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "configure storage %s", ref.Name)
		}
		endpoint := ref.Endpoint
		c.clients[ref.Name] = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
			o.UsePathStyle = true
		})
		c.refs[ref.Name] = ref
	}
	return c, nil
}

func (c *client) resolve(name string) (*StorageRef, *s3.Client, error) {
	ref, ok := c.refs[name]
	if !ok {
		return nil, nil, btrixerrors.NewStorageRefUnknown(name)
	}
	return ref, c.clients[name], nil
}

func (c *client) DefaultReplicas() []string {
	var names []string
	for name, ref := range c.refs {
		if ref.IsDefaultReplica {
			names = append(names, name)
		}
	}
	return names
}

func (c *client) Presign(ctx context.Context, storageName, key string, duration time.Duration) (string, error) {
	ref, s3c, err := c.resolve(storageName)
	if err != nil {
		return "", err
	}
	presigner := s3.NewPresignClient(s3c)
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(duration))
	if err != nil {
		return "", pkgerrors.Wrapf(err, "presign %s/%s", storageName, key)
	}
	return req.URL, nil
}

func (c *client) Head(ctx context.Context, storageName, key string) (*ObjectInfo, error) {
	ref, s3c, err := c.resolve(storageName)
	if err != nil {
		return nil, err
	}
	out, err := s3c.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "head %s/%s", storageName, key)
	}
	return &ObjectInfo{
		Size: aws.ToInt64(out.ContentLength),
		ETag: aws.ToString(out.ETag),
	}, nil
}

func (c *client) Copy(ctx context.Context, srcStorage, srcKey, dstStorage, dstKey string) error {
	srcRef, _, err := c.resolve(srcStorage)
	if err != nil {
		return err
	}
	dstRef, dstClient, err := c.resolve(dstStorage)
	if err != nil {
		return err
	}
	_, err = dstClient.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstRef.Bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(srcRef.Bucket + "/" + srcKey),
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "copy %s/%s to %s/%s", srcStorage, srcKey, dstStorage, dstKey)
	}
	return nil
}

func (c *client) Delete(ctx context.Context, storageName, key string) error {
	ref, s3c, err := c.resolve(storageName)
	if err != nil {
		return err
	}
	_, err = s3c.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return pkgerrors.Wrapf(err, "delete %s/%s", storageName, key)
	}
	return nil
}

func (c *client) List(ctx context.Context, storageName, prefix string, fn func(key string, size int64) error) error {
	ref, s3c, err := c.resolve(storageName)
	if err != nil {
		return err
	}
	paginator := s3.NewListObjectsV2Paginator(s3c, &s3.ListObjectsV2Input{
		Bucket: aws.String(ref.Bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return pkgerrors.Wrapf(err, "list %s/%s", storageName, prefix)
		}
		for _, obj := range page.Contents {
			if err = fn(aws.ToString(obj.Key), aws.ToInt64(obj.Size)); err != nil {
				return err
			}
		}
	}
	return nil
}
