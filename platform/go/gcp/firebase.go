package gcp

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// CredentialsPathEnv points at a service-account JSON file for local
// development; in Cloud Run / GCE the ambient credentials are used.
const CredentialsPathEnv = "FIREBASE_CONFIG"

// NewApp creates a Firebase App instance, honoring a local credentials file
// when one is configured.
func NewApp(ctx context.Context) (*firebase.App, error) {
	if path, found := os.LookupEnv(CredentialsPathEnv); found {
		return firebase.NewApp(ctx, nil, option.WithCredentialsFile(path))
	}
	return firebase.NewApp(ctx, nil)
}

// InitFirestore initializes the Firebase App and returns its Firestore
// client. The client is the process-wide handle to the company namespace.
func InitFirestore(ctx context.Context) (*firebase.App, *firestore.Client, error) {
	app, err := NewApp(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firebase app [%w]", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing firestore client [%w]", err)
	}

	return app, client, nil
}
