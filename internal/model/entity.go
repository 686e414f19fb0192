package model

// Entity represents a row in the `entity` table.  An entity is an
// opaque identity record owned by exactly one domain object (tenant,
// user, folder or device).  Owners hold the entity's id as a foreign
// key; tags attach to the entity rather than to the owner directly,
// which lets a single association table serve every taggable type.
//
// Fields:
//  ID – primary key identifier of the entity.
type Entity struct {
    ID uint64 // entity.id
}

// Tag represents a row in the `tag` table.  Tags are scoped to a
// tenant: the name is unique within the tenant and a tag may only be
// attached to entities whose owner belongs to the same tenant.
//
// Fields:
//  ID       – primary key identifier.
//  Name     – tag name, unique per tenant.
//  TenantID – owning tenant of the tag.
type Tag struct {
    ID       uint64 // tag.id
    Name     string // tag.name
    TenantID uint64 // tag.tenant_id
}

// EntityTag models a row of the `entity_tag` association table.  It
// carries no payload beyond the pair; insertion order is irrelevant.
//
// Fields:
//  EntityID – the tagged entity.
//  TagID    – the attached tag.
type EntityTag struct {
    EntityID uint64 // entity_tag.entity_id
    TagID    uint64 // entity_tag.tag_id
}
