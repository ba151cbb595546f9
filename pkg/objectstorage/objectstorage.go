/*
 *     Copyright 2023 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

//go:generate mockgen -package mocks -source objectstorage.go -destination ./mocks/objectstorage_mock.go

package objectstorage

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

type Metadata struct {
	// Name is object storage name of type, it can be s3 or oss.
	Name string

	// Region is storage region.
	Region string

	// Endpoint is datacenter endpoint.
	Endpoint string
}

type ObjectStorage interface {
	// GetMetadata returns metadata of object storage.
	GetMetadata(ctx context.Context) *Metadata

	// CreateBucket creates bucket of object storage.
	CreateBucket(ctx context.Context, bucketName string) error

	// IsBucketExist returns whether the bucket exists.
	IsBucketExist(ctx context.Context, bucketName string) (bool, error)

	// PutObject puts data of object, digest is stored in the object metadata.
	PutObject(ctx context.Context, bucketName, objectKey, digest string, reader io.ReadSeeker) error

	// IsObjectExist returns whether the object exists.
	IsObjectExist(ctx context.Context, bucketName, objectKey string) (bool, error)

	// GetSignURL returns sign url of object.
	GetSignURL(ctx context.Context, bucketName, objectKey string, method Method, expire time.Duration) (string, error)
}

// objectStorage provides object storage options.
type objectStorage struct {
	// s3ForcePathStyle sets force path style for s3, true by default.
	s3ForcePathStyle bool

	// httpClient is the http client of the sdks.
	httpClient *http.Client
}

// Option is a functional option for configuring the objectStorage.
type Option func(o *objectStorage)

// WithS3ForcePathStyle set the S3ForcePathStyle for objectStorage.
func WithS3ForcePathStyle(s3ForcePathStyle bool) Option {
	return func(o *objectStorage) {
		o.s3ForcePathStyle = s3ForcePathStyle
	}
}

// WithHTTPClient set the http client for objectStorage.
func WithHTTPClient(client *http.Client) Option {
	return func(o *objectStorage) {
		o.httpClient = client
	}
}

// New object storage interface.
func New(name, region, endpoint, accessKey, secretKey string, options ...Option) (ObjectStorage, error) {
	o := &objectStorage{
		s3ForcePathStyle: DefaultS3ForcePathStyle,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
				ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
				IdleConnTimeout:       DefaultIdleConnTimeout,
				MaxIdleConnsPerHost:   DefaultMaxIdleConnsPerHost,
				ReadBufferSize:        DefaultReadBufferSize,
				WriteBufferSize:       DefaultWriteBufferSize,
				DisableCompression:    DefaultDisableCompression,
			},
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range options {
		opt(o)
	}

	switch name {
	case ServiceNameS3:
		return newS3(region, endpoint, accessKey, secretKey, o.s3ForcePathStyle, o.httpClient)
	case ServiceNameOSS:
		return newOSS(region, endpoint, accessKey, secretKey, o.httpClient)
	}

	return nil, fmt.Errorf("unknow service name %s", name)
}
