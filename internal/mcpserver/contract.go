package mcpserver

// ItemFormatContract describes the item file layout that LLM consumers
// should follow when creating or editing items.
const ItemFormatContract = `# doorlink Item Format Contract

Every requirement item is one YAML file inside a document directory.

## Layout

` + "```" + `yaml
active: true                # OPTIONAL – inactive items are kept but ignored by reviews
derived: false
header: Login               # OPTIONAL – short title shown instead of the first text line
level: 1.1
links:                      # parent items this item traces to
- REQ001: null              # value is the review stamp of the parent, or null
normative: true             # false for headings and informative text
ref: ''
references:                 # OPTIONAL – source locations implementing the item
- path: src/login.c         # relative to the tree root
  type: file
  keyword: login            # OPTIONAL – first occurrence is the target
reviewed: null
text: |
  The user can log in.
` + "```" + `

## Rules

1. **File name is the UID.** ` + "`" + `REQ001.yml` + "`" + ` holds item REQ001 of the document whose
   ` + "`" + `.doorstop.yml` + "`" + ` declares prefix REQ. Files starting with a dot are not items.
2. **Links point up.** An item links to items of its parent document, or further up the
   chain. Use the ` + "`" + `link_items` + "`" + ` tool rather than editing by hand; it picks the right side.
3. **Sequences start at column 0** under their key, as in the example.
4. **Normative items need links.** An item with ` + "`" + `normative: true` + "`" + ` and no parent, child
   or other linked items is flagged as untraced.
5. **Top-level keys** stay in alphabetical order.
6. **Encoding** is UTF-8 with a trailing newline.
`
