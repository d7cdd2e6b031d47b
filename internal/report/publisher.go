package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/zielm/covid-analysis/internal/pipeline"
)

// #region types
// Ack is the sink's answer to a published report.
type Ack struct {
	RunID    string
	Accepted bool
}

// #endregion types

// #region publisher-struct
// Publisher sends run reports to a report sink over gRPC.
type Publisher struct {
	conn   *grpc.ClientConn
	client ReportSinkClient
}

// #endregion publisher-struct

// #region constructor
// NewPublisher connects to the report sink at addr.
func NewPublisher(addr string, opts ...grpc.DialOption) (*Publisher, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Publisher{
		conn:   conn,
		client: NewReportSinkClient(conn),
	}, nil
}

// NewPublisherWithClient creates a Publisher with an injected client.
// Used for testing without a real gRPC connection.
func NewPublisherWithClient(client ReportSinkClient) *Publisher {
	return &Publisher{client: client}
}

// Close shuts down the gRPC connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// #endregion constructor

// #region publish
// Publish sends the report of a finished run and returns the sink's ack.
// Transient failures are retried with exponential backoff.
func (p *Publisher) Publish(ctx context.Context, res pipeline.Result) (Ack, error) {
	msg, err := Encode(res)
	if err != nil {
		return Ack{}, err
	}
	var resp *structpb.Struct
	for attempts := 1; ; attempts++ {
		resp, err = p.client.Publish(ctx, msg)
		if !shouldRetry(err, attempts) {
			break
		}
		if werr := wait(ctx, attempts); werr != nil {
			break
		}
	}
	if err != nil {
		return Ack{}, fmt.Errorf("publish rpc: %w", err)
	}
	ack := DecodeAck(resp)
	if ack.RunID != res.RunID {
		return ack, fmt.Errorf("publish: ack for run %q, sent %q", ack.RunID, res.RunID)
	}
	return ack, nil
}

// #endregion publish

// #region encoding
// Encode converts a run result into a Struct through its JSON form.
func Encode(res pipeline.Result) (*structpb.Struct, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	msg, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return msg, nil
}

// Decode converts a received report back into a run result.
func Decode(msg *structpb.Struct) (pipeline.Result, error) {
	raw, err := json.Marshal(msg.AsMap())
	if err != nil {
		return pipeline.Result{}, fmt.Errorf("marshal report: %w", err)
	}
	var res pipeline.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return pipeline.Result{}, fmt.Errorf("decode report: %w", err)
	}
	if res.RunID == "" {
		return pipeline.Result{}, errors.New("decode report: missing run_id")
	}
	return res, nil
}

// EncodeAck builds the ack Struct.
func EncodeAck(ack Ack) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"run_id":   structpb.NewStringValue(ack.RunID),
		"accepted": structpb.NewBoolValue(ack.Accepted),
	}}
}

// DecodeAck reads an ack Struct. Missing fields read as zero values.
func DecodeAck(msg *structpb.Struct) Ack {
	f := msg.GetFields()
	return Ack{
		RunID:    f["run_id"].GetStringValue(),
		Accepted: f["accepted"].GetBoolValue(),
	}
}

// #endregion encoding
