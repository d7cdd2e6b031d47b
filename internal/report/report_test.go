package report

import (
	"context"
	"errors"
	"net"
	"slices"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zielm/covid-analysis/internal/classify"
	"github.com/zielm/covid-analysis/internal/forest"
	"github.com/zielm/covid-analysis/internal/pipeline"
)

// #region mock
type mockSinkClient struct {
	resp  *structpb.Struct
	err   error
	sent  *structpb.Struct
	calls int

	failFirst int // calls that fail with Unavailable before err/resp apply
}

func (m *mockSinkClient) Publish(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	m.sent = in
	m.calls++
	if m.calls <= m.failFirst {
		return nil, status.Error(codes.Unavailable, "sink down")
	}
	return m.resp, m.err
}

// #endregion mock

// #region helpers
func sampleResult() pipeline.Result {
	return pipeline.Result{
		RunID:    "run-42",
		Config:   pipeline.DefaultConfig(),
		Patients: 10,
		Selected: []string{"ldh", "albumin"},
		Split:    classify.Split{Train: []int{0, 1, 2}, Test: []int{3}},
		Evaluation: classify.EvaluationResult{
			Confusion: classify.ConfusionMatrix{TP: 1},
			Accuracy:  1,
			VariableImportance: []forest.FeatureScore{
				{Feature: "ldh", Score: 2.25},
				{Feature: "age", Score: 0.5},
			},
		},
		Trace: []pipeline.StageTrace{{Stage: "impute", Decision: "ok", Duration: 1234567}},
	}
}

// bufSink starts a collector on an in-memory listener and returns a
// publisher connected to it.
func bufSink(t *testing.T) (*Collector, *Publisher) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	sink := NewCollector(nil)
	RegisterReportSinkServer(srv, sink)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	pub, err := NewPublisher("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })
	return sink, pub
}

// #endregion helpers

// #region bufconn-tests
func TestPublish_RoundTrip(t *testing.T) {
	sink, pub := bufSink(t)
	res := sampleResult()

	ack, err := pub.Publish(context.Background(), res)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !ack.Accepted || ack.RunID != "run-42" {
		t.Errorf("unexpected ack %+v", ack)
	}

	got := sink.Reports()
	if len(got) != 1 {
		t.Fatalf("expected 1 report, got %d", len(got))
	}
	r := got[0]
	if r.RunID != res.RunID || r.Patients != 10 || r.Config != res.Config {
		t.Errorf("report header diverged: %+v", r)
	}
	if !slices.Equal(r.Selected, res.Selected) || !slices.Equal(r.Split.Test, res.Split.Test) {
		t.Errorf("report selection diverged: %v %v", r.Selected, r.Split)
	}
	if !slices.Equal(r.Evaluation.VariableImportance, res.Evaluation.VariableImportance) {
		t.Errorf("importance diverged: %v", r.Evaluation.VariableImportance)
	}
	if r.Trace[0].Duration != res.Trace[0].Duration {
		t.Errorf("trace duration diverged: %v", r.Trace[0].Duration)
	}
}

func TestPublish_RejectsMissingRunID(t *testing.T) {
	_, pub := bufSink(t)
	res := sampleResult()
	res.RunID = ""

	_, err := pub.Publish(context.Background(), res)
	if err == nil {
		t.Fatal("expected error")
	}
	if status.Code(errors.Unwrap(err)) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", err)
	}
}

// #endregion bufconn-tests

// #region mock-tests
func TestNewPublisherWithClient(t *testing.T) {
	p := NewPublisherWithClient(&mockSinkClient{})
	if p == nil || p.client == nil {
		t.Fatal("expected non-nil client")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close without conn: %v", err)
	}
}

func TestPublish_Error(t *testing.T) {
	mock := &mockSinkClient{err: errors.New("rpc failed")}
	p := NewPublisherWithClient(mock)

	_, err := p.Publish(context.Background(), sampleResult())
	if !errors.Is(err, mock.err) {
		t.Errorf("expected wrapped rpc error, got: %v", err)
	}
}

func TestPublish_AckMismatch(t *testing.T) {
	mock := &mockSinkClient{resp: EncodeAck(Ack{RunID: "other", Accepted: true})}
	p := NewPublisherWithClient(mock)

	if _, err := p.Publish(context.Background(), sampleResult()); err == nil {
		t.Fatal("expected error for ack of another run")
	}
	if mock.sent.GetFields()["run_id"].GetStringValue() != "run-42" {
		t.Errorf("unexpected sent report %v", mock.sent)
	}
}

func TestPublish_RetriesUnavailable(t *testing.T) {
	mock := &mockSinkClient{failFirst: 1, resp: EncodeAck(Ack{RunID: "run-42", Accepted: true})}
	p := NewPublisherWithClient(mock)

	ack, err := p.Publish(context.Background(), sampleResult())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !ack.Accepted || mock.calls != 2 {
		t.Errorf("expected success on second call, got ack %+v after %d calls", ack, mock.calls)
	}
}

func TestPublish_GivesUpAfterMaxRetries(t *testing.T) {
	mock := &mockSinkClient{failFirst: 10}
	p := NewPublisherWithClient(mock)

	_, err := p.Publish(context.Background(), sampleResult())
	if status.Code(errors.Unwrap(err)) != codes.Unavailable {
		t.Fatalf("expected Unavailable, got %v", err)
	}
	if mock.calls != maxRetries+1 {
		t.Errorf("expected %d calls, got %d", maxRetries+1, mock.calls)
	}
}

func TestPublish_NoRetryOnPermanentError(t *testing.T) {
	mock := &mockSinkClient{err: status.Error(codes.InvalidArgument, "bad report")}
	p := NewPublisherWithClient(mock)

	if _, err := p.Publish(context.Background(), sampleResult()); err == nil {
		t.Fatal("expected error")
	}
	if mock.calls != 1 {
		t.Errorf("expected 1 call, got %d", mock.calls)
	}
}

// #endregion mock-tests

// #region encoding-tests
func TestEncodeAck(t *testing.T) {
	want := &structpb.Struct{Fields: map[string]*structpb.Value{
		"run_id":   structpb.NewStringValue("r"),
		"accepted": structpb.NewBoolValue(true),
	}}
	if got := EncodeAck(Ack{RunID: "r", Accepted: true}); !proto.Equal(got, want) {
		t.Errorf("EncodeAck = %v, want %v", got, want)
	}
	if ack := DecodeAck(&structpb.Struct{}); ack.RunID != "" || ack.Accepted {
		t.Errorf("expected zero ack, got %+v", ack)
	}
}

func TestEncodeDecode(t *testing.T) {
	res := sampleResult()
	msg, err := Encode(res)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if msg.GetFields()["run_id"].GetStringValue() != "run-42" {
		t.Errorf("expected run_id field, got %v", msg.GetFields()["run_id"])
	}
	back, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := pipeline.Compare(pipeline.BaselineOf(res), pipeline.BaselineOf(back)); len(diff) != 0 {
		t.Errorf("decoded report diverged: %v", diff)
	}
}

// #endregion encoding-tests
