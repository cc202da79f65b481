package http

import (
	"bytes"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/biller/internal/application/service"
	"github.com/garyjia/biller/internal/domain/entity"
)

const (
	invoiceNotFound  = "Invoice not found"
	templateNotFound = "Template not found"
	clientNotFound   = "Client not found"
)

// parseID reads the :id path parameter, answering 404 when it is not a record ID
func parseID(c *gin.Context, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, errorResponse{Error: notFound})
		return 0, false
	}
	return id, true
}

func bindBody(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

// listInvoices handles GET /api/invoices
func (s *Server) listInvoices(c *gin.Context) {
	invoices, err := s.deps.Invoices.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to list invoices")
		return
	}
	c.JSON(http.StatusOK, invoices)
}

// createInvoice handles POST /api/invoices
func (s *Server) createInvoice(c *gin.Context) {
	var in service.InvoiceInput
	if !bindBody(c, &in) {
		return
	}

	invoice, err := s.deps.Invoices.Create(c.Request.Context(), &in)
	if err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to create invoice")
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

// getInvoice handles GET /api/invoices/:id
func (s *Server) getInvoice(c *gin.Context) {
	id, ok := parseID(c, invoiceNotFound)
	if !ok {
		return
	}

	invoice, err := s.deps.Invoices.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to load invoice")
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// updateInvoice handles PUT /api/invoices/:id
func (s *Server) updateInvoice(c *gin.Context) {
	id, ok := parseID(c, invoiceNotFound)
	if !ok {
		return
	}
	var in service.InvoiceInput
	if !bindBody(c, &in) {
		return
	}

	invoice, err := s.deps.Invoices.Update(c.Request.Context(), id, &in)
	if err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to update invoice")
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// deleteInvoice handles DELETE /api/invoices/:id
func (s *Server) deleteInvoice(c *gin.Context) {
	id, ok := parseID(c, invoiceNotFound)
	if !ok {
		return
	}

	if err := s.deps.Invoices.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to delete invoice")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted successfully"})
}

// updateStatus handles PATCH /api/invoices/:id/status
func (s *Server) updateStatus(c *gin.Context) {
	id, ok := parseID(c, invoiceNotFound)
	if !ok {
		return
	}
	var update service.StatusUpdate
	if !bindBody(c, &update) {
		return
	}

	invoice, err := s.deps.Invoices.UpdateStatus(c.Request.Context(), id, update)
	if err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to update status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": invoice.Status, "amountPaid": invoice.AmountPaid})
}

// generatePDF handles POST /api/invoices/:id/generate
func (s *Server) generatePDF(c *gin.Context) {
	id, ok := parseID(c, invoiceNotFound)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	result, err := s.deps.Invoices.GeneratePDF(ctx, id)
	if err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to generate invoice")
		return
	}

	invoice, err := s.deps.Invoices.Get(ctx, id)
	if err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to load invoice")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Invoice generated successfully",
		"pdfUrl":   result.PDFPath,
		"renderer": result.Renderer,
		"invoice":  invoice,
	})
}

// nextNumber handles GET /api/invoices/next-number
func (s *Server) nextNumber(c *gin.Context) {
	number, err := s.deps.Invoices.NextNumber(c.Request.Context())
	if err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to allocate invoice number")
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoiceNumber": number})
}

// statsSummary handles GET /api/invoices/stats/summary
func (s *Server) statsSummary(c *gin.Context) {
	summary, err := s.deps.Invoices.Stats(c.Request.Context())
	if err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to compute stats")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// exportInvoices handles GET /api/invoices/export
func (s *Server) exportInvoices(c *gin.Context) {
	all, err := s.deps.Invoices.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to export invoices")
		return
	}

	invoices := make([]*entity.Invoice, 0, len(all))
	for _, inv := range all {
		if !inv.IsTemplate {
			invoices = append(invoices, inv)
		}
	}

	var buf bytes.Buffer
	if err := s.deps.Exporter.Write(&buf, invoices); err != nil {
		s.respondError(c, err, invoiceNotFound, "Failed to export invoices")
		return
	}

	name := fmt.Sprintf("invoices-%s%s", time.Now().UTC().Format("20060102"), s.deps.Exporter.Extension())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, s.deps.Exporter.ContentType(), buf.Bytes())
}

// processRecurring handles POST /api/invoices/recurring/process
func (s *Server) processRecurring(c *gin.Context) {
	result, err := s.deps.Recurring.Process(c.Request.Context())
	if err != nil {
		s.respondError(c, err, invoiceNotFound, "Recurring processing failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// servePDF handles GET /invoices/:file for generated documents
func (s *Server) servePDF(c *gin.Context) {
	name := c.Param("file")
	if name != path.Base(name) || strings.HasPrefix(name, ".") || !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		c.JSON(http.StatusNotFound, errorResponse{Error: "File not found"})
		return
	}

	ctx := c.Request.Context()
	rel := path.Join(service.PDFDir, name)
	if !s.deps.Files.Exists(ctx, rel) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "File not found"})
		return
	}

	content, err := s.deps.Files.Read(ctx, rel)
	if err != nil {
		s.respondError(c, err, "File not found", "Failed to read file")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, name))
	c.Data(http.StatusOK, "application/pdf", content)
}

// listTemplates handles GET /api/templates
func (s *Server) listTemplates(c *gin.Context) {
	templates, err := s.deps.Templates.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err, templateNotFound, "Failed to list templates")
		return
	}
	c.JSON(http.StatusOK, templates)
}

// createTemplate handles POST /api/templates
func (s *Server) createTemplate(c *gin.Context) {
	var in service.InvoiceInput
	if !bindBody(c, &in) {
		return
	}

	template, err := s.deps.Templates.Create(c.Request.Context(), &in)
	if err != nil {
		s.respondError(c, err, templateNotFound, "Failed to create template")
		return
	}
	c.JSON(http.StatusCreated, template)
}

// getTemplate handles GET /api/templates/:id
func (s *Server) getTemplate(c *gin.Context) {
	id, ok := parseID(c, templateNotFound)
	if !ok {
		return
	}

	template, err := s.deps.Templates.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, templateNotFound, "Failed to load template")
		return
	}
	c.JSON(http.StatusOK, template)
}

// updateTemplate handles PUT /api/templates/:id
func (s *Server) updateTemplate(c *gin.Context) {
	id, ok := parseID(c, templateNotFound)
	if !ok {
		return
	}
	var in service.InvoiceInput
	if !bindBody(c, &in) {
		return
	}

	template, err := s.deps.Templates.Update(c.Request.Context(), id, &in)
	if err != nil {
		s.respondError(c, err, templateNotFound, "Failed to update template")
		return
	}
	c.JSON(http.StatusOK, template)
}

// deleteTemplate handles DELETE /api/templates/:id
func (s *Server) deleteTemplate(c *gin.Context) {
	id, ok := parseID(c, templateNotFound)
	if !ok {
		return
	}

	if err := s.deps.Templates.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err, templateNotFound, "Failed to delete template")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted successfully"})
}

// createFromTemplate handles POST /api/templates/:id/create-invoice
func (s *Server) createFromTemplate(c *gin.Context) {
	id, ok := parseID(c, templateNotFound)
	if !ok {
		return
	}

	// an empty body instantiates the template with generated details
	var in service.CreateFromTemplateInput
	if c.Request.ContentLength != 0 && !bindBody(c, &in) {
		return
	}

	invoice, err := s.deps.Templates.CreateInvoice(c.Request.Context(), id, in)
	if err != nil {
		s.respondError(c, err, templateNotFound, "Failed to create invoice from template")
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

// listClients handles GET /api/clients
func (s *Server) listClients(c *gin.Context) {
	clients, err := s.deps.Clients.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err, clientNotFound, "Failed to list clients")
		return
	}
	c.JSON(http.StatusOK, clients)
}

// createClient handles POST /api/clients
func (s *Server) createClient(c *gin.Context) {
	var client entity.Client
	if !bindBody(c, &client) {
		return
	}

	created, err := s.deps.Clients.Create(c.Request.Context(), &client)
	if err != nil {
		s.respondError(c, err, clientNotFound, "Failed to create client")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// getClient handles GET /api/clients/:id
func (s *Server) getClient(c *gin.Context) {
	id, ok := parseID(c, clientNotFound)
	if !ok {
		return
	}

	client, err := s.deps.Clients.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err, clientNotFound, "Failed to load client")
		return
	}
	c.JSON(http.StatusOK, client)
}

// updateClient handles PUT /api/clients/:id
func (s *Server) updateClient(c *gin.Context) {
	id, ok := parseID(c, clientNotFound)
	if !ok {
		return
	}
	var client entity.Client
	if !bindBody(c, &client) {
		return
	}

	updated, err := s.deps.Clients.Update(c.Request.Context(), id, &client)
	if err != nil {
		s.respondError(c, err, clientNotFound, "Failed to update client")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// deleteClient handles DELETE /api/clients/:id
func (s *Server) deleteClient(c *gin.Context) {
	id, ok := parseID(c, clientNotFound)
	if !ok {
		return
	}

	if err := s.deps.Clients.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err, clientNotFound, "Failed to delete client")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Client deleted successfully"})
}
