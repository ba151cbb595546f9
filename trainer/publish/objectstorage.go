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

package publish

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	logger "github.com/neuronetiq/marketplace-trainer/internal/mplog"
	"github.com/neuronetiq/marketplace-trainer/pkg/digest"
	"github.com/neuronetiq/marketplace-trainer/pkg/objectstorage"
	"github.com/neuronetiq/marketplace-trainer/trainer/artifact"
)

// objectStorage publishes bundles under <prefix>/<bundle digest>/ of a bucket.
type objectStorage struct {
	name          string
	client        objectstorage.ObjectStorage
	signURLExpire time.Duration
}

// NewObjectStorage returns a Registry of client, repo ids are bucket or bucket/prefix.
func NewObjectStorage(name string, client objectstorage.ObjectStorage, signURLExpire time.Duration) Registry {
	return &objectStorage{
		name:          name,
		client:        client,
		signURLExpire: signURLExpire,
	}
}

func (o *objectStorage) Name() string {
	return o.name
}

// Upload puts every file of the bundle, the receipt url is a presigned url of the config record.
func (o *objectStorage) Upload(ctx context.Context, bundle *artifact.Bundle, repoID string) (*Receipt, error) {
	bucket, prefix, _ := strings.Cut(strings.Trim(repoID, "/"), "/")
	if bucket == "" {
		return nil, errors.Errorf("invalid repo id %s", repoID)
	}

	if meta := o.client.GetMetadata(ctx); meta != nil {
		logger.Infof("publishing to %s bucket %s, region %s, endpoint %s", meta.Name, bucket, meta.Region, meta.Endpoint)
	}

	exist, err := o.client.IsBucketExist(ctx, bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "check bucket %s", bucket)
	}

	if !exist {
		if err := o.client.CreateBucket(ctx, bucket); err != nil {
			return nil, errors.Wrapf(err, "create bucket %s", bucket)
		}
	}

	revision := bundle.Digest.Encoded()
	names := bundle.Files
	if bundle.Tarball != "" {
		names = append(append([]string{}, names...), filepath.Base(bundle.Tarball))
	}

	for _, name := range names {
		if err := o.put(ctx, bucket, path.Join(prefix, revision, name), filepath.Join(bundle.Dir, name)); err != nil {
			return nil, err
		}
	}

	url, err := o.client.GetSignURL(ctx, bucket, path.Join(prefix, revision, artifact.ConfigFileName), objectstorage.MethodGet, o.signURLExpire)
	if err != nil {
		return nil, errors.Wrap(err, "sign url")
	}

	return &Receipt{
		Repo:   repoID,
		Commit: bundle.Digest.String(),
		URL:    url,
	}, nil
}

// put skips keys already present, keys are addressed by the bundle digest.
func (o *objectStorage) put(ctx context.Context, bucket, key, filePath string) error {
	exist, err := o.client.IsObjectExist(ctx, bucket, key)
	if err != nil {
		return errors.Wrapf(err, "check object %s", key)
	}

	if exist {
		logger.Infof("object %s already exists in bucket %s", key, bucket)
		return nil
	}

	d, err := digest.HashFile(filePath)
	if err != nil {
		return err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	if err := o.client.PutObject(ctx, bucket, key, d.String(), f); err != nil {
		return errors.Wrapf(err, "put object %s", key)
	}

	return nil
}
