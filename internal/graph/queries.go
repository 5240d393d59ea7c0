package graph

// RelatedToChunks returns relationships touching the given chunk nodes in
// either direction, including the CONTAINS edge from their document.
// Params: chunk_ids ([]string), limit (int).
const RelatedToChunks = `
MATCH (c:Chunk)-[r]-(related)
WHERE c.id IN $chunk_ids
RETURN c.id AS source_id,
       type(r) AS type,
       coalesce(related.id, elementId(related)) AS target_id,
       labels(related) AS labels,
       properties(r) AS properties
ORDER BY source_id, type, target_id
LIMIT $limit`

// LinkDocumentChunks records document containment for persisted chunks.
// Params: document_id (string), source (string), chunks ([]map with id, chunk_index).
const LinkDocumentChunks = `
MERGE (d:Document {id: $document_id})
SET d.source = $source
WITH d
UNWIND $chunks AS chunk
MERGE (c:Chunk {id: chunk.id})
SET c.document_id = $document_id, c.chunk_index = chunk.chunk_index
MERGE (d)-[:CONTAINS]->(c)`

// DeleteDocument removes a document node and its chunk nodes.
// Params: document_id (string).
const DeleteDocument = `
MATCH (d:Document {id: $document_id})
OPTIONAL MATCH (d)-[:CONTAINS]->(c:Chunk)
DETACH DELETE d, c`
