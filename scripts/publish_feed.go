//go:build ignore

// publish_feed.go - Publishes the feed generator record to a PDS so the
// feed shows up in Bluesky clients.
//
// The record lives in the publisher's repo under app.bsky.feed.generator
// with the feed name as its record key, and points at the service DID that
// answers getFeedSkeleton.
//
// Usage:
//
//	export BSKY_HANDLE=you.bsky.social
//	export BSKY_APP_PASSWORD=xxxx-xxxx-xxxx-xxxx
//	export FEEDGEN_HOSTNAME=feed.example.com
//	go run scripts/publish_feed.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	bsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
)

func main() {
	handle := os.Getenv("BSKY_HANDLE")
	password := os.Getenv("BSKY_APP_PASSWORD")
	hostname := os.Getenv("FEEDGEN_HOSTNAME")
	if handle == "" || password == "" || hostname == "" {
		log.Fatal("BSKY_HANDLE, BSKY_APP_PASSWORD, and FEEDGEN_HOSTNAME must be set")
	}

	pdsHost := os.Getenv("PDS_HOST")
	if pdsHost == "" {
		pdsHost = "https://bsky.social"
	}
	feedName := os.Getenv("FEED_RECORD_NAME")
	if feedName == "" {
		feedName = "domain-news"
	}
	displayName := os.Getenv("FEED_DISPLAY_NAME")
	if displayName == "" {
		displayName = "Trending News"
	}

	ctx := context.Background()
	client := &xrpc.Client{Host: pdsHost}

	session, err := comatproto.ServerCreateSession(ctx, client, &comatproto.ServerCreateSession_Input{
		Identifier: handle,
		Password:   password,
	})
	if err != nil {
		log.Fatalf("create session: %v", err)
	}
	client.Auth = &xrpc.AuthInfo{
		AccessJwt:  session.AccessJwt,
		RefreshJwt: session.RefreshJwt,
		Did:        session.Did,
		Handle:     session.Handle,
	}

	description := "Links to allow-listed news sites, ranked by shares and reposts with time decay."
	record := &bsky.FeedGenerator{
		Did:         "did:web:" + hostname,
		DisplayName: displayName,
		Description: &description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	resp, err := comatproto.RepoPutRecord(ctx, client, &comatproto.RepoPutRecord_Input{
		Collection: "app.bsky.feed.generator",
		Repo:       session.Did,
		Rkey:       feedName,
		Record:     &lexutil.LexiconTypeDecoder{Val: record},
	})
	if err != nil {
		log.Fatalf("put record: %v", err)
	}

	fmt.Printf("published %s\n", resp.Uri)
	fmt.Printf("feed URI: at://%s/app.bsky.feed.generator/%s\n", session.Did, feedName)
}
