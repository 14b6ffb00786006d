package layout

// layoutSchema constrains the shape of a layout document before any
// model-level validation runs, so shape errors and constraint errors
// stay distinguishable.
const layoutSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["bootloader", "disks"],
  "additionalProperties": false,
  "properties": {
    "bootloader": {"enum": ["none", "bios", "uefi", "prep"]},
    "disks": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["serial", "size"],
        "additionalProperties": false,
        "properties": {
          "serial": {"type": "string", "minLength": 1},
          "size": {"type": "string", "minLength": 1},
          "partitions": {"type": "array", "items": {"$ref": "#/definitions/partition"}}
        }
      }
    },
    "raids": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "level", "devices"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string"},
          "level": {"enum": ["raid0", "raid1", "raid5", "raid6", "raid10"]},
          "devices": {"type": "array", "minItems": 2, "items": {"type": "string"}},
          "spares": {"type": "array", "items": {"type": "string"}},
          "partitions": {"type": "array", "items": {"$ref": "#/definitions/partition"}},
          "fstype": {"type": "string"},
          "mount": {"type": "string"}
        }
      }
    },
    "volgroups": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "devices"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string"},
          "devices": {"type": "array", "minItems": 1, "items": {"type": "string"}},
          "encrypt_key": {"type": "string"},
          "volumes": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "size"],
              "additionalProperties": false,
              "properties": {
                "name": {"type": "string"},
                "size": {"type": "string"},
                "fstype": {"type": "string"},
                "mount": {"type": "string"}
              }
            }
          }
        }
      }
    }
  },
  "definitions": {
    "partition": {
      "type": "object",
      "required": ["size"],
      "additionalProperties": false,
      "properties": {
        "size": {"type": "string", "minLength": 1},
        "flag": {"enum": ["boot", "bios_grub", "prep"]},
        "fstype": {"type": "string"},
        "mount": {"type": "string"}
      }
    }
  }
}`
