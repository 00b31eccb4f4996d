package engine

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Register decoders for image dimensions
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"reader-backend/internal/storage"
	"reader-backend/internal/store"
)

type FileHandler struct {
	store    *store.Store
	storage  storage.FileStorage
	resolver *storage.Resolver
	maxSize  int64
}

func NewFileHandler(s *store.Store, fs storage.FileStorage, maxSize int64) *FileHandler {
	return &FileHandler{store: s, storage: fs, resolver: storage.NewResolver(s), maxSize: maxSize}
}

// Upload handles POST /api/files. Image dimensions are recorded so image
// elements can report them.
func (h *FileHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return respondError(c, NewAppError("INVALID_PAYLOAD", 400, "Missing file in form data"))
	}

	if h.maxSize > 0 && file.Size > h.maxSize {
		msg := fmt.Sprintf("File too large: %d bytes (max %d)", file.Size, h.maxSize)
		return respondError(c, NewAppError("FILE_TOO_LARGE", 413, msg))
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read uploaded file: %w", err)
	}

	fileID := uuid.New().String()
	filename := file.Filename
	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	var width, height int
	if strings.HasPrefix(mimeType, "image/") {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			width, height = cfg.Width, cfg.Height
		}
	}

	storagePath, err := h.storage.Save(c.UserContext(), fileID, filename, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("save file: %w", err)
	}

	var uploadedBy *string
	if user := getUser(c); user != nil {
		uploadedBy = &user.ID
	}

	pb := h.store.Dialect.NewParamBuilder()
	sql := fmt.Sprintf(`INSERT INTO _files (id, filename, storage_path, mime_type, size, width, height, uploaded_by)
	        VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`,
		pb.Add(fileID), pb.Add(filename), pb.Add(storagePath), pb.Add(mimeType),
		pb.Add(file.Size), pb.Add(width), pb.Add(height), pb.Add(uploadedBy))
	if _, err := store.Exec(c.UserContext(), h.store.DB, sql, pb.Params()...); err != nil {
		// Clean up stored file on DB failure
		_ = h.storage.Delete(c.UserContext(), storagePath)
		return fmt.Errorf("insert _files: %w", err)
	}

	return c.Status(201).JSON(fiber.Map{
		"data": fiber.Map{
			"id":        fileID,
			"filename":  filename,
			"size":      file.Size,
			"mime_type": mimeType,
			"width":     width,
			"height":    height,
			"url":       "/files/" + fileID,
		},
	})
}

// Serve handles GET /files/:id.
func (h *FileHandler) Serve(c *fiber.Ctx) error {
	id := c.Params("id")
	f, err := h.resolver.ResolveByReference(c.UserContext(), id)
	if err != nil {
		return err
	}
	if f == nil {
		return respondError(c, NotFoundError("File", id))
	}

	reader, err := h.storage.Open(c.UserContext(), f.Path)
	if err != nil {
		return fmt.Errorf("open stored file: %w", err)
	}

	c.Set("Content-Type", f.MimeType)
	c.Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, f.Filename))
	return c.SendStream(reader)
}

// Delete handles DELETE /api/files/:id.
func (h *FileHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	f, err := h.resolver.ResolveByReference(c.UserContext(), id)
	if err != nil {
		return err
	}
	if f == nil {
		return respondError(c, NotFoundError("File", id))
	}

	if err := h.storage.Delete(c.UserContext(), f.Path); err != nil {
		return fmt.Errorf("delete stored file: %w", err)
	}

	pb := h.store.Dialect.NewParamBuilder()
	if _, err := store.Exec(c.UserContext(), h.store.DB,
		fmt.Sprintf("DELETE FROM _files WHERE id = %s", pb.Add(f.ID)), pb.Params()...); err != nil {
		return fmt.Errorf("delete _files row: %w", err)
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"deleted": true}})
}

// List handles GET /api/files.
func (h *FileHandler) List(c *fiber.Ctx) error {
	rows, err := store.QueryRows(c.UserContext(), h.store.DB,
		"SELECT id, filename, mime_type, size, width, height, uploaded_by, created_at FROM _files ORDER BY created_at DESC")
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("list _files: %w", err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(fiber.Map{"data": rows})
}
