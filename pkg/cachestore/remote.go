package cachestore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/pipforge/pipcore/pkg/fingerprint"
	"github.com/pipforge/pipcore/pkg/grpcutil"
	"github.com/pipforge/pipcore/pkg/observe"
)

// Full gRPC method names for the three cache store operations. No .proto
// file backs these: the out-of-scope remote backend is assumed to speak
// this contract, and since no protoc toolchain runs as part of this build
// (see pkg/fingerprint's Algorithm type for the same constraint), requests
// and responses are plain gob payloads carried inside the well-known
// wrapperspb.BytesValue envelope rather than purpose-generated messages.
const (
	methodQueryPathSets         = "/pipforge.pipcore.cachestore.v1.CacheStore/QueryPathSets"
	methodQueryStrongFingerprint = "/pipforge.pipcore.cachestore.v1.CacheStore/QueryStrongFingerprint"
	methodPublish               = "/pipforge.pipcore.cachestore.v1.CacheStore/Publish"
)

// RemoteStore is a thin gRPC transport shim over Store: it dials a cache
// backend and encodes/decodes requests as gob payloads wrapped in
// wrapperspb.BytesValue, using the teacher's grpcutil helpers for message
// size limits and RPC error unwrapping. The backend itself (a CAS, a
// shared build-cache service) is out of scope; this type only implements
// the client-side transport.
type RemoteStore struct {
	conn *grpc.ClientConn
}

// NewRemoteStore wraps an already-dialed connection as a Store. Callers are
// expected to have dialed with grpc.WithDefaultCallOptions(
// grpc.MaxCallRecvMsgSize(grpcutil.MaximumMessageSize)) or equivalent.
func NewRemoteStore(conn *grpc.ClientConn) *RemoteStore {
	return &RemoteStore{conn: conn}
}

type queryPathSetsRequest struct {
	WeakFingerprint fingerprint.Fingerprint
	MaxResults      int
}

type queryPathSetsResponse struct {
	Candidates []PathSetCandidate
}

type queryStrongFingerprintRequest struct {
	WeakFingerprint   fingerprint.Fingerprint
	PathSetHash       string
	StrongFingerprint fingerprint.Fingerprint
}

type queryStrongFingerprintResponse struct {
	Metadata Metadata
	Hit      bool
}

type publishRequest struct {
	WeakFingerprint   fingerprint.Fingerprint
	PathSet           observe.PathSet
	StrongFingerprint fingerprint.Fingerprint
	Metadata          Metadata
}

// QueryPathSets implements Store.QueryPathSets over gRPC.
func (r *RemoteStore) QueryPathSets(ctx context.Context, weakFingerprint fingerprint.Fingerprint, maxResults int) ([]PathSetCandidate, error) {
	var resp queryPathSetsResponse
	if err := r.call(ctx, methodQueryPathSets, queryPathSetsRequest{WeakFingerprint: weakFingerprint, MaxResults: maxResults}, &resp); err != nil {
		return nil, err
	}
	return resp.Candidates, nil
}

// QueryStrongFingerprint implements Store.QueryStrongFingerprint over gRPC.
func (r *RemoteStore) QueryStrongFingerprint(ctx context.Context, weakFingerprint fingerprint.Fingerprint, pathSetHash string, strongFingerprint fingerprint.Fingerprint) (Metadata, bool, error) {
	var resp queryStrongFingerprintResponse
	req := queryStrongFingerprintRequest{
		WeakFingerprint:   weakFingerprint,
		PathSetHash:       pathSetHash,
		StrongFingerprint: strongFingerprint,
	}
	if err := r.call(ctx, methodQueryStrongFingerprint, req, &resp); err != nil {
		return Metadata{}, false, err
	}
	return resp.Metadata, resp.Hit, nil
}

// Publish implements Store.Publish over gRPC.
func (r *RemoteStore) Publish(ctx context.Context, weakFingerprint fingerprint.Fingerprint, pathSet observe.PathSet, strongFingerprint fingerprint.Fingerprint, metadata Metadata) error {
	req := publishRequest{
		WeakFingerprint:   weakFingerprint,
		PathSet:           pathSet,
		StrongFingerprint: strongFingerprint,
		Metadata:          metadata,
	}
	var ack wrapperspb.BytesValue
	return r.call(ctx, methodPublish, req, &ack)
}

// call gob-encodes request, wraps it in a BytesValue envelope, invokes
// method, and gob-decodes the BytesValue response into response (unless
// response is already a *wrapperspb.BytesValue, in which case the reply is
// discarded — used for Publish's fire-and-forget acknowledgement).
func (r *RemoteStore) call(ctx context.Context, method string, request, response interface{}) error {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(request); err != nil {
		return fmt.Errorf("unable to encode cache store request: %w", err)
	}
	envelope := &wrapperspb.BytesValue{Value: payload.Bytes()}

	reply := &wrapperspb.BytesValue{}
	if err := r.conn.Invoke(ctx, method, envelope, reply); err != nil {
		return grpcutil.PeelAwayRPCErrorLayer(err)
	}

	if ack, ok := response.(*wrapperspb.BytesValue); ok {
		ack.Value = reply.Value
		return nil
	}
	if len(reply.Value) == 0 {
		return nil
	}
	if err := gob.NewDecoder(bytes.NewReader(reply.Value)).Decode(response); err != nil {
		return fmt.Errorf("unable to decode cache store response: %w", err)
	}
	return nil
}
