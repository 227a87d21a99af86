package http

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/database/books"
)

const maxImportFileSize = 20 * 1024 * 1024

type BooksController struct {
	catalog     CatalogService
	circulation CirculationService
	archiver    ReportArchiver
}

func NewBooksController(catalogService CatalogService, circulationService CirculationService, archiver ReportArchiver) *BooksController {
	return &BooksController{
		catalog:     catalogService,
		circulation: circulationService,
		archiver:    archiver,
	}
}

// ListBooks handles GET /api/books.
// With no filters it returns the most recently updated titles.
func (bc *BooksController) ListBooks(c *gin.Context) {
	criteria := books.Criteria{
		Title:     c.Query("title"),
		Author:    c.Query("author"),
		Publisher: c.Query("publisher"),
		Category:  c.Query("category"),
	}

	if criteria.IsEmpty() {
		limit, ok := parseLimitQuery(c)
		if !ok {
			return
		}
		recent, err := bc.catalog.RecentBooks(c.Request.Context(), limit)
		if err != nil {
			respondInternalError(c, err, "recent books")
			return
		}
		c.JSON(http.StatusOK, gin.H{"books": recent, "count": len(recent)})
		return
	}

	found, err := bc.catalog.SearchBooks(c.Request.Context(), criteria)
	if err != nil {
		respondInternalError(c, err, "search books")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": found, "count": len(found)})
}

// GetBook handles GET /api/books/:bookNo
func (bc *BooksController) GetBook(c *gin.Context) {
	book, err := bc.catalog.GetBook(c.Request.Context(), c.Param("bookNo"))
	if err != nil {
		respondDomainError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// AddBook handles POST /api/books
func (bc *BooksController) AddBook(c *gin.Context) {
	var in catalog.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	book, err := bc.catalog.AddBook(c.Request.Context(), auth.GetActor(c), in)
	if err != nil {
		respondDomainError(c, err, "add book")
		return
	}
	respondCreated(c, book)
}

// DeleteBook handles DELETE /api/books/:bookNo
func (bc *BooksController) DeleteBook(c *gin.Context) {
	bookNo := c.Param("bookNo")
	if err := bc.catalog.DeleteBook(c.Request.Context(), auth.GetActor(c), bookNo); err != nil {
		respondDomainError(c, err, "delete book")
		return
	}
	respondSuccess(c, "book "+bookNo+" deleted")
}

// Ranking handles GET /api/books/ranking
func (bc *BooksController) Ranking(c *gin.Context) {
	limit, ok := parseLimitQuery(c)
	if !ok {
		return
	}
	ranking, err := bc.circulation.Ranking(c.Request.Context(), limit)
	if err != nil {
		respondInternalError(c, err, "ranking")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ranking": ranking})
}

// Import handles POST /api/books/import with a multipart "file" field.
// dry_run=true validates the rows without writing. The report of a real run
// is archived when an archiver is configured.
func (bc *BooksController) Import(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}
	defer file.Close()

	if header.Size > maxImportFileSize {
		respondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file too large (max %d MB)", maxImportFileSize/(1024*1024)), "file_too_large")
		return
	}

	dryRun, _ := strconv.ParseBool(c.PostForm("dry_run"))
	ctx := c.Request.Context()

	var report *catalog.ImportReport
	if dryRun {
		report, err = bc.catalog.ValidateImport(ctx, file)
	} else {
		report, err = bc.catalog.ImportBooks(ctx, auth.GetActor(c), file)
	}

	if report != nil && !dryRun && bc.archiver != nil {
		if _, archiveErr := bc.archiver.SaveNamedJSON(report.BatchID, report); archiveErr != nil {
			log.Printf("Failed to archive import report %s: %v", report.BatchID, archiveErr)
		}
	}

	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "import stopped: " + err.Error(),
			Code:    "import_failed",
			Details: report,
		})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Export handles GET /api/books/export.
// The whole catalog is rendered before the first byte is sent, so a failure
// still produces a proper error response.
func (bc *BooksController) Export(c *gin.Context) {
	var buf bytes.Buffer
	if _, err := bc.catalog.ExportBooks(c.Request.Context(), &buf); err != nil {
		respondInternalError(c, err, "export books")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="books.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
