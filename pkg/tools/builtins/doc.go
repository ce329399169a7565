// Package builtins provides the tools every lokal engine registers:
// read_file, search_documents, get_context, get_system_info and
// retrieve_documents.
package builtins
