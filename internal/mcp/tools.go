package mcp

import "github.com/mark3labs/mcp-go/mcp"

var composeToolDef = mcp.NewTool("post_compose",
	mcp.WithDescription("Compose and publish a post. Uses image_base64 or image_path as the gallery image; with neither, captures a frame from the camera. Annotations and the filter are applied in one pass."),
	mcp.WithString("image_base64", mcp.Description("Gallery image (JPEG, PNG or GIF), base64 encoded")),
	mcp.WithString("image_path", mcp.Description("Gallery image file path")),
	mcp.WithString("facing", mcp.Description("Camera facing when capturing"), mcp.Enum("user", "environment")),
	mcp.WithString("filter", mcp.Description("Filter name from catalog_filters (default: Normal)")),
	mcp.WithString("text", mcp.Description("Text overlay drawn on the photo")),
	mcp.WithString("caption", mcp.Description("Post caption")),
	mcp.WithNumber("caption_index", mcp.Description("Use the AI caption suggestion at this index instead of caption")),
	mcp.WithBoolean("location", mcp.Description("Add the location chip")),
	mcp.WithBoolean("weather", mcp.Description("Add the weather chip")),
	mcp.WithBoolean("time", mcp.Description("Add the current time chip")),
	mcp.WithObject("health",
		mcp.Description("Health record from catalog_health"),
		mcp.Properties(map[string]any{
			"category": map[string]any{"type": "string", "enum": []string{"activity", "mood", "challenge"}},
			"index":    map[string]any{"type": "integer", "minimum": 0},
		}),
	),
)

var fetchToolDef = mcp.NewTool("post_fetch",
	mcp.WithDescription("Fetch one post by id."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Post id")),
	mcp.WithBoolean("include_image", mcp.Description("Include the base64 image (default: false)")),
	mcp.WithBoolean("include_deleted", mcp.Description("Return soft-deleted posts too")),
)

var listToolDef = mcp.NewTool("post_list",
	mcp.WithDescription("List post summaries, newest first."),
	mcp.WithString("author", mcp.Description("Only posts by this author")),
	mcp.WithString("date", mcp.Description("Only posts created on this day (YYYY-MM-DD)")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted posts")),
)

var deleteToolDef = mcp.NewTool("post_delete",
	mcp.WithDescription("Soft-delete a post. It stays recoverable until purged."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Post id")),
)

var saveImageToolDef = mcp.NewTool("post_save_image",
	mcp.WithDescription("Write a post's composed image to a JPEG file."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Post id")),
	mcp.WithString("path", mcp.Description("Destination .jpg path (default: ~/.moment/exports/<id>.jpg)")),
)

var exportToolDef = mcp.NewTool("post_export",
	mcp.WithDescription("Export posts to a JSONL backup file."),
	mcp.WithString("path", mcp.Description("Destination .jsonl path")),
	mcp.WithString("author", mcp.Description("Only posts by this author")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted posts")),
)

var importToolDef = mcp.NewTool("post_import",
	mcp.WithDescription("Import posts from a JSONL backup file."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Backup .jsonl path")),
	mcp.WithString("mode", mcp.Description("Collision handling (default: error)"), mcp.Enum("error", "skip")),
)

var purgeToolDef = mcp.NewTool("post_purge",
	mcp.WithDescription("Permanently remove soft-deleted posts."),
	mcp.WithNumber("older_than_days", mcp.Description("Only purge posts deleted more than N days ago")),
)

var filtersToolDef = mcp.NewTool("catalog_filters",
	mcp.WithDescription("List the available photo filters in carousel order."),
)

var captionsToolDef = mcp.NewTool("catalog_captions",
	mcp.WithDescription("List the AI caption suggestions."),
)

var healthToolDef = mcp.NewTool("catalog_health",
	mcp.WithDescription("List selectable health records by category."),
	mcp.WithString("category", mcp.Description("Only this category"), mcp.Enum("activity", "mood", "challenge")),
)
