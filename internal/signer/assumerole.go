package signer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"golang.org/x/sync/singleflight"
)

// expiryWindow refreshes temporary credentials this long before they expire
// so in-flight requests never sign with credentials about to lapse.
const expiryWindow = 60 * time.Second

// stsAPI is the subset of the STS client the cache needs.
type stsAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// assumedRoleCache holds temporary credentials per role ARN. Entries are
// immutable once installed; a refresh installs a new entry. Concurrent
// refreshes for the same role coalesce through the singleflight group.
type assumedRoleCache struct {
	mu      sync.RWMutex
	entries map[string]aws.Credentials
	group   singleflight.Group

	// newClient builds an STS client for a region+base credentials pair;
	// replaceable in tests.
	newClient func(region string, base aws.CredentialsProvider) stsAPI
}

func newAssumedRoleCache() *assumedRoleCache {
	return &assumedRoleCache{
		entries: make(map[string]aws.Credentials),
		newClient: func(region string, base aws.CredentialsProvider) stsAPI {
			return sts.New(sts.Options{Region: region, Credentials: base})
		},
	}
}

func (c *assumedRoleCache) retrieve(ctx context.Context, region string, base aws.CredentialsProvider, roleARN string, now func() time.Time) (aws.Credentials, error) {
	c.mu.RLock()
	cached, ok := c.entries[roleARN]
	c.mu.RUnlock()
	if ok && now().Before(cached.Expires.Add(-expiryWindow)) {
		return cached, nil
	}

	v, err, _ := c.group.Do(roleARN, func() (any, error) {
		// Re-check under the flight: another caller may have refreshed while
		// this one was queued.
		c.mu.RLock()
		cached, ok := c.entries[roleARN]
		c.mu.RUnlock()
		if ok && now().Before(cached.Expires.Add(-expiryWindow)) {
			return cached, nil
		}

		client := c.newClient(region, base)
		sessionName := fmt.Sprintf("bedrock-gateway-%d", now().Unix())
		out, err := client.AssumeRole(ctx, &sts.AssumeRoleInput{
			RoleArn:         &roleARN,
			RoleSessionName: &sessionName,
		})
		if err != nil {
			return aws.Credentials{}, fmt.Errorf("sts assume role %s: %w", roleARN, err)
		}
		creds := aws.Credentials{
			AccessKeyID:     *out.Credentials.AccessKeyId,
			SecretAccessKey: *out.Credentials.SecretAccessKey,
			SessionToken:    *out.Credentials.SessionToken,
			CanExpire:       true,
			Expires:         *out.Credentials.Expiration,
			Source:          "AssumeRole",
		}
		c.mu.Lock()
		c.entries[roleARN] = creds
		c.mu.Unlock()
		return creds, nil
	})
	if err != nil {
		return aws.Credentials{}, err
	}
	return v.(aws.Credentials), nil
}

func (c *assumedRoleCache) invalidate(roleARN string) {
	c.mu.Lock()
	delete(c.entries, roleARN)
	c.mu.Unlock()
}
