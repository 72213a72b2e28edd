// Package mcpserver exposes the note store to MCP clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jwulff/voxnote/internal/note"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wires note operations to MCP tools.
type Server struct {
	notes  *note.Service
	logger *slog.Logger
	mcp    *server.MCPServer
}

// New creates a Server with the list_notes, add_note and delete_note tools
// registered.
func New(notes *note.Service, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		notes:  notes,
		logger: logger,
		mcp:    server.NewMCPServer("voxnote", version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List voxnote notes, newest first. Audio notes include the transcript and the recording path."),
		mcp.WithNumber("limit", mcp.Description("Return at most this many notes (0 for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("add_note",
		mcp.WithDescription("Add a text note"),
		mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
	), s.addNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note by id. Deleting a missing id succeeds."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id as returned by list_notes")),
	), s.deleteNote)

	return s
}

// ServeStdio serves MCP requests on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := s.notes.List(ctx)
	if err != nil {
		s.logger.Error("list_notes", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("list notes: %v", err)), nil
	}

	if limit := req.GetInt("limit", 0); limit > 0 && limit < len(notes) {
		notes = notes[:limit]
	}

	data, err := json.MarshalIndent(notes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode notes: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) addNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	n, err := s.notes.AddText(ctx, content)
	if errors.Is(err, note.ErrEmptyContent) {
		return mcp.NewToolResultError("content is empty"), nil
	}
	if err != nil {
		s.logger.Error("add_note", "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("add note: %v", err)), nil
	}

	s.logger.Info("note added", "id", n.ID)
	return mcp.NewToolResultText(fmt.Sprintf("Added note %s", n.ID)), nil
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.notes.Delete(ctx, id); err != nil {
		s.logger.Error("delete_note", "id", id, "err", err)
		return mcp.NewToolResultError(fmt.Sprintf("delete note: %v", err)), nil
	}

	s.logger.Info("note deleted", "id", id)
	return mcp.NewToolResultText(fmt.Sprintf("Deleted note %s", id)), nil
}
