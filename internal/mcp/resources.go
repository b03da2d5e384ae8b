package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/endo-report-server/internal/domain"
	"github.com/endo-report-server/internal/letter"
)

const (
	proceduresURI      = "endo://procedures"
	procedureURIPrefix = proceduresURI + "/"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         proceduresURI,
		Name:        "procedures",
		Description: "Procedure kinds with their display labels",
		MIMEType:    "application/json",
	}, s.readProcedures)

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: procedureURIPrefix + "{kind}",
		Name:        "procedure-body",
		Description: "Letter body of a procedure kind rendered with placeholder case fields",
		MIMEType:    "text/plain",
	}, s.readProcedureBody)
}

func (s *Server) readProcedures(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	data, err := json.Marshal(letter.Procedures())
	if err != nil {
		return nil, fmt.Errorf("failed to encode procedures: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

func (s *Server) readProcedureBody(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	kind := domain.ProcedureKind(strings.TrimPrefix(uri, procedureURIPrefix))
	if !kind.Valid() {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	sample := domain.NewCaseRecord().
		WithPatientName("[Patient]").
		WithTooth("[dent]").
		WithProcedure(kind)

	body, err := letter.Render(sample)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     body,
		}},
	}, nil
}
