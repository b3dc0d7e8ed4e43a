// Package importer bulk-loads students from an .xlsx workbook.
//
// Only the first sheet is read. If its first row names the columns
// (student_id, name, profile_image, qr_code in any order and case) those
// positions are used; otherwise every row is data and the first four
// columns are taken in that order. Each row goes through the registry
// service's Create, so every imported record is validated and broadcast
// like one created over HTTP. A bad row never aborts the import.
package importer
